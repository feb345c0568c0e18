package storage

import (
	"errors"
	"fmt"
)

// ErrInvalidState is reported by Sink.BulkWrite when the operation is invalid
// in the sink's current state, which in practice means the destination table
// does not exist yet.
var ErrInvalidState = errors.New("storage: destination does not exist")

// BackendError is a database-reported failure carrying the backend's own
// error code (SQL Server error number, Postgres SQLSTATE, SQLite result code).
type BackendError struct {
	Backend string
	Code    string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: code %s: %v", e.Backend, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err with a backend code.
func NewBackendError(backend, code string, err error) error {
	return &BackendError{Backend: backend, Code: code, Err: err}
}

// MissingDestination marks err as the "destination does not exist" failure.
func MissingDestination(destination string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidState, destination, err)
}

// CodeOf returns the backend code of err, if err wraps a *BackendError.
func CodeOf(err error) (string, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return "", false
}
