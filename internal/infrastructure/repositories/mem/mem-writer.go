package mem

import (
	"opendut-carl/internal/domain/ports"
)

// Session is a memory session. Writes go straight to the columns; each one
// records how to undo itself so Abort can restore the previous state.
type Session struct {
	db       *MemDB
	writable bool
	journal  []func()
	done     bool
}

// Commit keeps the changes and ends the session
func (s *Session) Commit() error {
	if s.done {
		return ports.ErrSessionClosed
	}
	s.journal = nil
	s.done = true
	return nil
}

// Abort undoes every change of the session in reverse order
func (s *Session) Abort() {
	if s.done {
		return
	}
	for i := len(s.journal) - 1; i >= 0; i-- {
		s.journal[i]()
	}
	s.journal = nil
	s.done = true
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

func (s *Session) record(undo func()) {
	s.journal = append(s.journal, undo)
}

var _ ports.Session = (*Session)(nil)
