package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrRetriesExhausted is returned when every attempt of a request failed transiently.
	ErrRetriesExhausted = errors.New("discovery: retries exhausted")
	// ErrProtocolViolation is returned when the offset without results_id error
	// cannot be corrected by stripping the offset.
	ErrProtocolViolation = errors.New("discovery: offset specified without results_id")
	// ErrNotConfigured is returned when no base URL is set.
	ErrNotConfigured = errors.New("discovery: base url not configured")
)

// StatusError is an HTTP response the client gave up on.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discovery: %s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Fatal reports whether the status is a client error that is never retried.
func (e *StatusError) Fatal() bool {
	return e.Code >= 400 && e.Code < 500
}
