package domain

import "errors"

var (
	// ErrNotFound signals an absent or soft-deleted event.
	ErrNotFound = errors.New("event not found")
	// ErrForbidden signals that the requester does not own the event.
	ErrForbidden = errors.New("forbidden")
	// ErrDatabase marks transactional write failures. It never crosses the
	// service boundary; services log the wrapped detail and return ErrInternal.
	ErrDatabase = errors.New("database error")
	// ErrInternal is the opaque failure surfaced to callers.
	ErrInternal     = errors.New("something went wrong")
	ErrInvalidInput = errors.New("invalid input")
)
