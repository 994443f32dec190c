package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is across package boundaries.
var (
	// ErrConfiguration marks fatal pre-scheduling errors: empty target
	// set, unknown module name, invalid rate or concurrency values.
	ErrConfiguration = errors.New("configuration error")

	// ErrRateLimit is returned by the limiter when the bounded acquire
	// wait elapses. Modules convert it into their own Failed or
	// TimedOut status; it never crosses the Probe boundary.
	ErrRateLimit = errors.New("rate limit wait exceeded")
)

// Error captures contextual information for toolkit failures.
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs an Error with the provided context.
func E(op, msg string, err error) error {
	return &Error{Op: op, Msg: msg, Err: err}
}
