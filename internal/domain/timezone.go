package domain

import "time"

// TimezoneConverter converts between wall-clock times in an IANA zone and UTC.
type TimezoneConverter interface {
	// ToUTC reinterprets the clock fields of t in the named zone and returns
	// the equivalent UTC instant.
	ToUTC(t time.Time, zone string) (time.Time, error)
	// ToLocal returns the UTC instant t expressed in the named zone.
	ToLocal(t time.Time, zone string) (time.Time, error)
}
