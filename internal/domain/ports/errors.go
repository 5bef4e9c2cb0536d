package ports

import "github.com/pkg/errors"

// Standard storage errors
var (
	// ErrNotPersistable is returned when a type without the Persistable marker reaches the database backend
	ErrNotPersistable = errors.New("resource type is not persistable")
	// ErrReadOnlySession is returned when a read-only session is asked to write
	ErrReadOnlySession = errors.New("session is read-only")
	// ErrSessionClosed is returned when a session is used after Commit or Abort
	ErrSessionClosed = errors.New("session is closed")
	// ErrStorageClosed is returned when a closed storage is asked for a session
	ErrStorageClosed = errors.New("storage is closed")
)
