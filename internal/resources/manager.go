package resources

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
	"opendut-carl/internal/infrastructure/repositories"
	"opendut-carl/internal/infrastructure/repositories/mem"
	"opendut-carl/internal/patterns"
)

// PersistentResource is a resource type the Manager accepts: it can be
// cloned and stored by every backend.
type PersistentResource[R any] interface {
	ports.Resource[R]
	ports.Persistable
}

// Result carries the outcome of a Mutate callback. Err is the error the
// callback returned, never a storage failure.
type Result[T any] struct {
	Value T
	Err   error
}

// Unwrap returns value and callback error
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Manager guards the resource store with a single read/write lock. Reads
// share the lock, every write runs as a transaction holding it exclusively.
type Manager struct {
	storage ports.Storage
	backend repositories.RepositoryType
	lock    *rwLock
	subject patterns.Subject[ChangeSet]
	logger  logr.Logger
}

// Create connects the backend selected by opts
func Create(ctx context.Context, opts repositories.PersistenceOptions, logger logr.Logger) (*Manager, error) {
	storage, err := repositories.Connect(ctx, opts, logger)
	if err != nil {
		return nil, &ConnectionError{Backend: string(opts.Type()), Cause: err}
	}
	return newManager(storage, opts.Type(), logger), nil
}

// NewInMemory returns a Manager backed by memory only
func NewInMemory(logger logr.Logger) *Manager {
	return newManager(mem.NewStorage(), repositories.RepositoryTypeMemory, logger)
}

func newManager(storage ports.Storage, backend repositories.RepositoryType, logger logr.Logger) *Manager {
	return &Manager{
		storage: storage,
		backend: backend,
		lock:    newRWLock(),
		subject: patterns.NewSubject[ChangeSet](),
		logger:  logger.WithName("resources"),
	}
}

// Backend names the storage backend in use
func (m *Manager) Backend() string {
	return string(m.backend)
}

// Healthy reports whether the backend is reachable
func (m *Manager) Healthy() bool {
	if hc, ok := m.storage.(ports.HealthChecker); ok {
		return hc.IsHealthy()
	}
	return true
}

// Subscribe registers fn to be called with the changes of every committed
// transaction. fn runs while the write lock is held and must not call back
// into the Manager.
func (m *Manager) Subscribe(fn func(ChangeSet)) (unsubscribe func()) {
	return m.subject.Subscribe(fn)
}

// Close waits for running operations and closes the backend
func (m *Manager) Close(ctx context.Context) error {
	if err := m.lock.Lock(ctx); err != nil {
		return errors.WithMessage(err, "close resources manager")
	}
	defer m.lock.Unlock()
	return m.storage.Close()
}

// Mutate runs f in a transaction holding the exclusive lock. The transaction
// is committed when f returns nil and rolled back otherwise.
//
// The returned error reports storage failures (*PersistenceError) and a
// context cancelled before the lock was acquired; the error of f is returned
// in Result.Err.
func Mutate[T any](ctx context.Context, m *Manager, f func(tx *Transaction) (T, error)) (Result[T], error) {
	var result Result[T]
	if err := m.lock.Lock(ctx); err != nil {
		return result, errors.WithMessage(err, "acquire write lock")
	}
	defer m.lock.Unlock()

	start := time.Now()
	session, err := m.storage.Writer(ctx)
	if err != nil {
		return result, m.failed(persistenceError("begin", "", "", err))
	}
	defer session.Abort()

	tx := &Transaction{v: view{session: session}}
	value, err := f(tx)
	if tx.v.err != nil {
		session.Abort()
		return result, m.failed(tx.v.err)
	}
	if err != nil {
		session.Abort()
		m.logger.V(1).Info("transaction rolled back", "reason", err.Error())
		return Result[T]{Value: value, Err: err}, nil
	}
	if err := session.Commit(); err != nil {
		return result, m.failed(persistenceError("commit", "", "", err))
	}

	m.logger.V(1).Info("transaction committed", "changes", len(tx.changes), "duration", time.Since(start))
	if len(tx.changes) > 0 {
		m.subject.Notify(tx.changes)
	}
	return Result[T]{Value: value}, nil
}

// Read runs f on a consistent snapshot while holding the lock shared
func Read[T any](ctx context.Context, m *Manager, f func(r *Resources) (T, error)) (T, error) {
	var zero T
	if err := m.lock.RLock(ctx); err != nil {
		return zero, errors.WithMessage(err, "acquire read lock")
	}
	defer m.lock.RUnlock()

	session, err := m.storage.Reader(ctx)
	if err != nil {
		return zero, m.failed(persistenceError("begin", "", "", err))
	}
	defer session.Abort()

	r := &Resources{v: view{session: session}}
	value, err := f(r)
	if r.v.err != nil {
		return zero, m.failed(r.v.err)
	}
	return value, err
}

func (m *Manager) failed(err error) error {
	m.logger.Error(err, "storage operation failed", "backend", m.backend)
	return err
}

// lookup is a value that may be absent
type lookup[R any] struct {
	value R
	ok    bool
}

// Get returns the value of key
func Get[K models.Key, R PersistentResource[R]](ctx context.Context, m *Manager, c Column[K, R], key K) (R, bool, error) {
	res, err := Read(ctx, m, func(r *Resources) (lookup[R], error) {
		value, ok, err := c.Get(r, key)
		return lookup[R]{value: value, ok: ok}, err
	})
	return res.value, res.ok, err
}

// List returns all values of the column
func List[K models.Key, R PersistentResource[R]](ctx context.Context, m *Manager, c Column[K, R]) ([]R, error) {
	return Read(ctx, m, func(r *Resources) ([]R, error) {
		return c.List(r)
	})
}

// Insert stores value under key in a transaction of its own
func Insert[K models.Key, R PersistentResource[R]](ctx context.Context, m *Manager, c Column[K, R], key K, value R) error {
	_, err := Mutate(ctx, m, func(tx *Transaction) (struct{}, error) {
		return struct{}{}, c.Insert(tx, key, value)
	})
	return err
}

// Remove deletes the value of key in a transaction of its own
func Remove[K models.Key, R PersistentResource[R]](ctx context.Context, m *Manager, c Column[K, R], key K) (R, bool, error) {
	res, err := Mutate(ctx, m, func(tx *Transaction) (lookup[R], error) {
		value, ok, err := c.Remove(tx, key)
		return lookup[R]{value: value, ok: ok}, err
	})
	return res.Value.value, res.Value.ok, err
}
