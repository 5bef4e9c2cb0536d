package pg

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"opendut-carl/internal/domain/ports"
)

// Compile-time check that Storage implements ports.Storage
var _ ports.Storage = (*Storage)(nil)

// Storage is the PostgreSQL backend of the resource store. Every resource
// kind is a partition of the carl.resources table.
type Storage struct {
	conn   *ConnectionManager
	logger logr.Logger
	mu     sync.RWMutex
	closed bool
}

// NewStorage connects to PostgreSQL and, if configured, migrates the schema
func NewStorage(ctx context.Context, config ConnectionConfig, logger logr.Logger) (*Storage, error) {
	conn := NewConnectionManager(config, logger)
	if err := conn.Connect(ctx); err != nil {
		return nil, errors.WithMessage(err, "NewStorage connect")
	}
	if config.Migrate {
		if err := conn.RunMigrations(ctx); err != nil {
			_ = conn.Close()
			return nil, errors.WithMessage(err, "NewStorage migrate")
		}
	}
	return &Storage{
		conn:   conn,
		logger: logger.WithName("pg"),
	}, nil
}

// Writer begins a read-write transaction
func (s *Storage) Writer(ctx context.Context) (ports.Session, error) {
	return s.begin(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
}

// Reader begins a read-only transaction that sees one snapshot
func (s *Storage) Reader(ctx context.Context) (ports.Session, error) {
	return s.begin(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
}

func (s *Storage) begin(ctx context.Context, opts pgx.TxOptions) (ports.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ports.ErrStorageClosed
	}
	tx, err := s.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, errors.WithMessage(err, "begin transaction")
	}
	return &Session{
		tx:       tx,
		ctx:      ctx,
		writable: opts.AccessMode == pgx.ReadWrite,
	}, nil
}

// IsHealthy reports the result of the last connection health check
func (s *Storage) IsHealthy() bool {
	return s.conn.IsHealthy()
}

// HealthStatus returns connection pool statistics
func (s *Storage) HealthStatus() HealthStatus {
	return s.conn.HealthStatus()
}

// Close closes the connection pool
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing PostgreSQL storage")
	return s.conn.Close()
}
