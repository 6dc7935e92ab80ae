package remote

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("remote file not found")
	ErrVersionConflict = errors.New("remote version conflict")
)

// StatusError is returned for unexpected HTTP responses.
// These are considered transient and may be retried by the caller.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response for %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}
