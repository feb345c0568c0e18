package blob

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Remote implementations for a missing path.
	// Client and Lister convert it to absence (nil node, false, empty listing).
	ErrNotFound = errors.New("blob: not found")

	// ErrBadRequest is returned by Remote implementations when the service
	// rejects the request as malformed. Some services answer a read of a
	// missing path this way, so Client.OpenRead treats it as absence.
	ErrBadRequest = errors.New("blob: bad request")

	// ErrUnsupportedOperation rejects append-mode writes.
	ErrUnsupportedOperation = errors.New("blob: unsupported operation")

	// ErrNotSupported rejects bulk metadata updates.
	ErrNotSupported = errors.New("blob: not supported")

	// ErrReadOnly rejects mutations on a read-only client.
	ErrReadOnly = errors.New("blob: client is read-only")
)

// OpError records the operation and path of a remote failure.
type OpError struct {
	Op     string
	Path   string
	Remote string
	Err    error
}

func (e *OpError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("blob %s: %s %s: %v", e.Remote, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("blob %s: %s: %v", e.Remote, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
