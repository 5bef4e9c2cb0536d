package ports

import (
	"context"
	"iter"

	"opendut-carl/internal/domain/models"
)

// Kind names the column a resource type is stored in
type Kind string

// Resource is any value the store can hold
type Resource[R any] interface {
	Clone() R
}

// Persistable marks resource types the database backend is able to store.
// Values must survive a round trip through encoding/json.
type Persistable interface {
	PersistableResource()
}

// Session is a unit of work against a Storage
type Session interface {
	// Commit makes the changes of the session visible
	Commit() error
	// Abort discards the changes of the session; calling it after Commit is a no-op
	Abort()
}

// Storage is a backend of the resource store
type Storage interface {
	// Reader opens a read-only session
	Reader(ctx context.Context) (Session, error)
	// Writer opens a read-write session
	Writer(ctx context.Context) (Session, error)
	// Close releases the backend
	Close() error
}

// HealthChecker is implemented by backends that can lose their connection
type HealthChecker interface {
	IsHealthy() bool
}

// Table is the column of a single resource kind as seen through one session
type Table[R any] interface {
	// Insert stores the value, replacing an existing one
	Insert(id models.ResourceID, value R) error
	// Remove deletes the value and returns it if it was present
	Remove(id models.ResourceID) (R, bool, error)
	// Get returns a copy of the value
	Get(id models.ResourceID) (R, bool, error)
	// Modify applies f to the stored value in place; absent values are left alone
	Modify(id models.ResourceID, f func(*R)) (bool, error)
	// InsertIfAbsent stores the value only when the id is not present
	InsertIfAbsent(id models.ResourceID, value R) (bool, error)
	// All yields every value of the column
	All() iter.Seq2[R, error]
	// AllMut yields every value for in-place modification
	AllMut() iter.Seq2[*R, error]
	// Len counts the values of the column
	Len() (int, error)
}
