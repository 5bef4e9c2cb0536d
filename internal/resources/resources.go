package resources

import (
	"fmt"
	"iter"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
	"opendut-carl/internal/infrastructure/repositories/mem"
	"opendut-carl/internal/infrastructure/repositories/pg"
)

// View gives read access to the store. It is implemented by *Resources and
// *Transaction and is only valid inside the callback it was passed to.
type View interface {
	state() *view
}

type view struct {
	session ports.Session
	err     error
}

// fail records the first backend failure seen through the view
func (v *view) fail(err error) error {
	if v.err == nil {
		v.err = err
	}
	return err
}

// Resources is a read-only snapshot of the store
type Resources struct {
	v view
}

func (r *Resources) state() *view { return &r.v }

// Transaction is a read-write view on the store. All changes made through it
// are committed together or not at all.
type Transaction struct {
	v       view
	changes ChangeSet
}

func (tx *Transaction) state() *view { return &tx.v }

func (tx *Transaction) record(kind ports.Kind, id fmt.Stringer, op ChangeOp) {
	tx.changes = append(tx.changes, Change{Kind: kind, ID: id.String(), Op: op})
}

// tableOf resolves the column against the backend of the session in use
func tableOf[K models.Key, R ports.Resource[R]](v View, c Column[K, R]) (ports.Table[R], error) {
	switch session := v.state().session.(type) {
	case *mem.Session:
		return mem.TableOf[R](session, c.kind), nil
	case *pg.Session:
		return pg.TableOf[R](session, c.kind)
	default:
		panic(fmt.Sprintf("unsupported storage session %T", session))
	}
}

// table resolves the column and records a resolution failure on the view
func (c Column[K, R]) table(v View, op string) (ports.Table[R], error) {
	t, err := tableOf(v, c)
	if err != nil {
		return nil, v.state().fail(persistenceError(op, c.kind, "", err))
	}
	return t, nil
}

func (c Column[K, R]) fail(v View, op string, key K, err error) error {
	return v.state().fail(persistenceError(op, c.kind, c.IntoID(key).String(), err))
}

// Insert stores value under key, replacing an existing value
func (c Column[K, R]) Insert(tx *Transaction, key K, value R) error {
	t, err := c.table(tx, "insert")
	if err != nil {
		return err
	}
	id := c.IntoID(key)
	if err := t.Insert(id, value); err != nil {
		return c.fail(tx, "insert", key, err)
	}
	tx.record(c.kind, id, ChangeUpsert)
	return nil
}

// Remove deletes the value of key and returns it if it was present
func (c Column[K, R]) Remove(tx *Transaction, key K) (R, bool, error) {
	var zero R
	t, err := c.table(tx, "remove")
	if err != nil {
		return zero, false, err
	}
	id := c.IntoID(key)
	value, ok, err := t.Remove(id)
	if err != nil {
		return zero, false, c.fail(tx, "remove", key, err)
	}
	if ok {
		tx.record(c.kind, id, ChangeRemove)
	}
	return value, ok, nil
}

// Get returns a copy of the value of key
func (c Column[K, R]) Get(v View, key K) (R, bool, error) {
	var zero R
	t, err := c.table(v, "get")
	if err != nil {
		return zero, false, err
	}
	value, ok, err := t.Get(c.IntoID(key))
	if err != nil {
		return zero, false, c.fail(v, "get", key, err)
	}
	return value, ok, nil
}

// Contains reports whether key has a value
func (c Column[K, R]) Contains(v View, key K) (bool, error) {
	_, ok, err := c.Get(v, key)
	return ok, err
}

// List returns all values of the column in backend order
func (c Column[K, R]) List(v View) ([]R, error) {
	var out []R
	for value, err := range c.All(v) {
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

// All yields all values of the column. It stops after the first error.
func (c Column[K, R]) All(v View) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		t, err := c.table(v, "list")
		if err != nil {
			yield(zero, err)
			return
		}
		for value, err := range t.All() {
			if err != nil {
				yield(zero, v.state().fail(persistenceError("list", c.kind, "", err)))
				return
			}
			if !yield(value, nil) {
				return
			}
		}
	}
}

// AllMut yields every value of the column for in-place modification.
// Changes are stored as iteration moves on.
func (c Column[K, R]) AllMut(tx *Transaction) iter.Seq2[*R, error] {
	return func(yield func(*R, error) bool) {
		t, err := c.table(tx, "modify")
		if err != nil {
			yield(nil, err)
			return
		}
		touched := false
		for value, err := range t.AllMut() {
			if err != nil {
				yield(nil, tx.v.fail(persistenceError("modify", c.kind, "", err)))
				return
			}
			touched = true
			if !yield(value, nil) {
				break
			}
		}
		if touched {
			tx.changes = append(tx.changes, Change{Kind: c.kind, Op: ChangeUpsert})
		}
	}
}

// Len counts the values of the column
func (c Column[K, R]) Len(v View) (int, error) {
	t, err := c.table(v, "count")
	if err != nil {
		return 0, err
	}
	n, err := t.Len()
	if err != nil {
		return 0, v.state().fail(persistenceError("count", c.kind, "", err))
	}
	return n, nil
}

// Update starts an update of the value of key
func (c Column[K, R]) Update(tx *Transaction, key K) *Update[K, R] {
	return &Update[K, R]{tx: tx, column: c, key: key}
}
