package resources

import (
	"fmt"

	"github.com/pkg/errors"

	"opendut-carl/internal/domain/ports"
)

// ConnectionError is returned by Create when the backend cannot be reached
type ConnectionError struct {
	Backend string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s storage: %v", e.Backend, e.Cause)
}

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error { return e.Cause }

// PersistenceError reports a failed backend operation. It is never retried.
type PersistenceError struct {
	Op    string
	Kind  ports.Kind
	ID    string
	Cause error
}

func (e *PersistenceError) Error() string {
	switch {
	case e.Kind == "":
		return fmt.Sprintf("persistence: %s failed: %v", e.Op, e.Cause)
	case e.ID == "":
		return fmt.Sprintf("persistence: %s of '%s' failed: %v", e.Op, e.Kind, e.Cause)
	default:
		return fmt.Sprintf("persistence: %s of '%s' %s failed: %v", e.Op, e.Kind, e.ID, e.Cause)
	}
}

// Unwrap returns the underlying error
func (e *PersistenceError) Unwrap() error { return e.Cause }

// IsPersistenceError reports whether err is or wraps a *PersistenceError
func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

func persistenceError(op string, kind ports.Kind, id string, cause error) error {
	var already *PersistenceError
	if errors.As(cause, &already) {
		return cause
	}
	return &PersistenceError{Op: op, Kind: kind, ID: id, Cause: cause}
}
