package catalog

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound     = errors.New("backend: resource not found")
	ErrUnauthorized = errors.New("backend: missing or rejected credentials")
	ErrUnavailable  = errors.New("backend: host unreachable or transport failure")
	ErrBackend      = errors.New("backend: internal error (5xx)")
	ErrBadResponse  = errors.New("backend: invalid response format or malformed data")
	ErrTimeout      = errors.New("backend: request timed out")
)

// Error wraps the sentinel errors with request context.
type Error struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("catalog: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}
