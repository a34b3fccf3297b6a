package backend

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/session"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrNotFound is matched by errors for backend 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is matched by errors for backends that could not be
	// reached or answered with a server error.
	ErrUnavailable = errors.New("backend unavailable")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// Unwrap lets callers match common statuses with errors.Is.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return session.ErrUnauthorized
	}
	if e.Code >= http.StatusInternalServerError {
		return ErrUnavailable
	}
	return nil
}

// Temporary reports whether the failure is on the backend side and the call
// may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}
