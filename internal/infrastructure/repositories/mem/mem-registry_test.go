package mem

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
)

const (
	kindNote  ports.Kind = "note"
	kindOther ports.Kind = "other"
)

type note struct {
	Text string
	Tags []string
}

func (n note) Clone() note {
	out := n
	if n.Tags != nil {
		out.Tags = append([]string(nil), n.Tags...)
	}
	return out
}

func newID() models.ResourceID {
	return models.ResourceID(uuid.New())
}

func writer(t *testing.T, s *Storage) *Session {
	t.Helper()
	session, err := s.Writer(context.Background())
	require.NoError(t, err)
	return session.(*Session)
}

func reader(t *testing.T, s *Storage) *Session {
	t.Helper()
	session, err := s.Reader(context.Background())
	require.NoError(t, err)
	return session.(*Session)
}

func TestMemStorage_InsertGetRemove(t *testing.T) {
	storage := NewStorage()
	defer storage.Close()
	id := newID()

	w := writer(t, storage)
	notes := TableOf[note](w, kindNote)
	require.NoError(t, notes.Insert(id, note{Text: "first"}))
	require.NoError(t, notes.Insert(id, note{Text: "second"}))
	require.NoError(t, w.Commit())

	r := reader(t, storage)
	got, ok, err := TableOf[note](r, kindNote).Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got.Text)
	n, err := TableOf[note](r, kindNote).Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, r.Commit())

	w = writer(t, storage)
	removed, ok, err := TableOf[note](w, kindNote).Remove(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", removed.Text)

	_, ok, err = TableOf[note](w, kindNote).Remove(id)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, w.Commit())

	assert.True(t, storage.IsEmpty())
}

func TestMemStorage_ColumnsAreIsolated(t *testing.T) {
	storage := NewStorage()
	id := newID()

	w := writer(t, storage)
	require.NoError(t, TableOf[note](w, kindNote).Insert(id, note{Text: "note"}))
	require.NoError(t, w.Commit())

	r := reader(t, storage)
	_, ok, err := TableOf[note](r, kindOther).Get(id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemStorage_NeverWrittenColumnIsEmpty(t *testing.T) {
	storage := NewStorage()
	r := reader(t, storage)
	notes := TableOf[note](r, kindNote)

	_, ok, err := notes.Get(newID())
	require.NoError(t, err)
	assert.False(t, ok)

	count := 0
	for _, err := range notes.All() {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
}

func TestMemStorage_AbortRestoresPreviousState(t *testing.T) {
	storage := NewStorage()
	kept, replaced, removed, added := newID(), newID(), newID(), newID()

	w := writer(t, storage)
	notes := TableOf[note](w, kindNote)
	require.NoError(t, notes.Insert(kept, note{Text: "kept", Tags: []string{"a"}}))
	require.NoError(t, notes.Insert(replaced, note{Text: "original"}))
	require.NoError(t, notes.Insert(removed, note{Text: "removed"}))
	require.NoError(t, w.Commit())

	w = writer(t, storage)
	notes = TableOf[note](w, kindNote)
	require.NoError(t, notes.Insert(replaced, note{Text: "replacement"}))
	_, _, err := notes.Remove(removed)
	require.NoError(t, err)
	require.NoError(t, notes.Insert(added, note{Text: "added"}))
	_, err = notes.Modify(kept, func(n *note) { n.Tags[0] = "changed" })
	require.NoError(t, err)
	for value, err := range notes.AllMut() {
		require.NoError(t, err)
		value.Text += "!"
	}
	w.Abort()

	r := reader(t, storage)
	notes = TableOf[note](r, kindNote)
	got, ok, err := notes.Get(kept)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, note{Text: "kept", Tags: []string{"a"}}, got)

	got, _, _ = notes.Get(replaced)
	assert.Equal(t, "original", got.Text)

	got, ok, _ = notes.Get(removed)
	assert.True(t, ok)
	assert.Equal(t, "removed", got.Text)

	_, ok, _ = notes.Get(added)
	assert.False(t, ok)
}

func TestMemStorage_ModifyAndInsertIfAbsent(t *testing.T) {
	storage := NewStorage()
	id := newID()

	w := writer(t, storage)
	notes := TableOf[note](w, kindNote)

	found, err := notes.Modify(id, func(n *note) { n.Text = "never" })
	require.NoError(t, err)
	assert.False(t, found)

	inserted, err := notes.InsertIfAbsent(id, note{Text: "default"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = notes.InsertIfAbsent(id, note{Text: "ignored"})
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err = notes.Modify(id, func(n *note) { n.Text += "+modified" })
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, w.Commit())

	got, _, err := TableOf[note](reader(t, storage), kindNote).Get(id)
	require.NoError(t, err)
	assert.Equal(t, "default+modified", got.Text)
}

func TestMemStorage_GetReturnsCopies(t *testing.T) {
	storage := NewStorage()
	id := newID()

	w := writer(t, storage)
	require.NoError(t, TableOf[note](w, kindNote).Insert(id, note{Tags: []string{"x"}}))
	require.NoError(t, w.Commit())

	r := reader(t, storage)
	got, _, err := TableOf[note](r, kindNote).Get(id)
	require.NoError(t, err)
	got.Tags[0] = "mutated"

	again, _, err := TableOf[note](r, kindNote).Get(id)
	require.NoError(t, err)
	assert.Equal(t, "x", again.Tags[0])
}

func TestMemStorage_SessionRules(t *testing.T) {
	storage := NewStorage()

	r := reader(t, storage)
	err := TableOf[note](r, kindNote).Insert(newID(), note{})
	assert.ErrorIs(t, err, ports.ErrReadOnlySession)

	w := writer(t, storage)
	require.NoError(t, w.Commit())
	assert.ErrorIs(t, w.Commit(), ports.ErrSessionClosed)
	_, _, err = TableOf[note](w, kindNote).Get(newID())
	assert.ErrorIs(t, err, ports.ErrSessionClosed)

	require.NoError(t, storage.Close())
	_, err = storage.Writer(context.Background())
	assert.ErrorIs(t, err, ports.ErrStorageClosed)
}

func TestMemStorage_KindTypeMismatchPanics(t *testing.T) {
	storage := NewStorage()
	w := writer(t, storage)
	require.NoError(t, TableOf[note](w, kindNote).Insert(newID(), note{}))

	assert.Panics(t, func() {
		_, _, _ = TableOf[models.ClusterDeployment](w, kindNote).Get(newID())
	})
}
