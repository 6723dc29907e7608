package tzconv

import (
	"fmt"
	"time"

	"calendarinvitation/internal/domain"
)

type converter struct{}

// New returns a TimezoneConverter backed by the system IANA timezone database.
func New() domain.TimezoneConverter {
	return converter{}
}

func (converter) ToUTC(t time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	// The incoming value carries wall-clock fields only; reinterpret them in
	// the event's zone before converting.
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	return local.UTC(), nil
}

func (converter) ToLocal(t time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return t.In(loc), nil
}
