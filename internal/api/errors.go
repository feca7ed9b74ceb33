package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited is returned when the prompt API answers 429. The
	// caller should not retry right away.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTransport covers every other failed call: non-2xx statuses and
	// network level errors.
	ErrTransport = errors.New("prompt API request failed")

	// ErrEmptyPrompt is returned when there is nothing to send.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// StatusError is returned for a non-2xx, non-429 response.
type StatusError struct {
	StatusCode int
	Status     string
	RequestID  string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d %s", ErrTransport, e.StatusCode, status)
}

// Unwrap lets errors.Is(err, ErrTransport) match.
func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// transportError wraps a network failure so that it matches ErrTransport
// while keeping the cause inspectable.
func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
