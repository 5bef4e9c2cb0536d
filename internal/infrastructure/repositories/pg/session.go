package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"opendut-carl/internal/domain/ports"
)

// Session wraps one database transaction
type Session struct {
	tx       pgx.Tx
	ctx      context.Context
	writable bool
	done     bool
	err      error
}

// Commit commits the transaction
func (s *Session) Commit() error {
	if s.done {
		return ports.ErrSessionClosed
	}
	s.done = true
	if s.err != nil {
		_ = s.tx.Rollback(s.ctx)
		return s.err
	}
	if err := s.tx.Commit(s.ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// Abort rolls the transaction back
func (s *Session) Abort() {
	if s.done {
		return
	}
	s.done = true
	_ = s.tx.Rollback(s.ctx)
}

// fail records an error that could not be returned to the caller; Commit reports it
func (s *Session) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) checkWrite() error {
	if s.done {
		return ports.ErrSessionClosed
	}
	if !s.writable {
		return ports.ErrReadOnlySession
	}
	return nil
}

func (s *Session) checkRead() error {
	if s.done {
		return ports.ErrSessionClosed
	}
	return nil
}

func (s *Session) exec(query string, args ...any) (pgconn.CommandTag, error) {
	if err := s.checkWrite(); err != nil {
		return pgconn.CommandTag{}, err
	}
	return s.tx.Exec(s.ctx, query, args...)
}

func (s *Session) queryRow(query string, args ...any) (pgx.Row, error) {
	if err := s.checkRead(); err != nil {
		return nil, err
	}
	return s.tx.QueryRow(s.ctx, query, args...), nil
}

func (s *Session) query(query string, args ...any) (pgx.Rows, error) {
	if err := s.checkRead(); err != nil {
		return nil, err
	}
	return s.tx.Query(s.ctx, query, args...)
}

var _ ports.Session = (*Session)(nil)
