package mem

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"opendut-carl/internal/domain/ports"
)

// Storage is an in-memory implementation of ports.Storage.
// Sessions are not isolated from each other; callers serialize writers.
type Storage struct {
	db     *MemDB
	mu     sync.RWMutex
	closed bool
}

// NewStorage creates a new in-memory storage
func NewStorage() *Storage {
	return &Storage{
		db: NewMemDB(),
	}
}

// Writer returns a new read-write session
func (s *Storage) Writer(ctx context.Context) (ports.Session, error) {
	return s.open(ctx, true)
}

// Reader returns a new read-only session
func (s *Storage) Reader(ctx context.Context) (ports.Session, error) {
	return s.open(ctx, false)
}

func (s *Storage) open(ctx context.Context, writable bool) (ports.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ports.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithMessage(err, "open memory session")
	}
	return &Session{
		db:       s.db,
		writable: writable,
	}, nil
}

// IsEmpty reports whether the storage holds no resources at all
func (s *Storage) IsEmpty() bool {
	return s.db.IsEmpty()
}

// Close closes the storage
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ ports.Storage = (*Storage)(nil)
