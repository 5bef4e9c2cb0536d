package mem

import (
	"iter"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
)

// TableOf returns the column of the kind as seen through the session
func TableOf[R ports.Resource[R]](s *Session, kind ports.Kind) ports.Table[R] {
	return &table[R]{session: s, kind: kind}
}

type table[R ports.Resource[R]] struct {
	session *Session
	kind    ports.Kind
}

func (t *table[R]) read() (*column[R], error) {
	if err := t.session.checkRead(); err != nil {
		return nil, err
	}
	return lookupColumn[R](t.session.db, t.kind), nil
}

func (t *table[R]) write() (*column[R], error) {
	if err := t.session.checkWrite(); err != nil {
		return nil, err
	}
	return ensureColumn[R](t.session.db, t.kind), nil
}

// remember journals the current entry of id so Abort can put it back
func (t *table[R]) remember(col *column[R], id models.ResourceID) {
	prev, existed := col.values[id]
	t.session.record(func() {
		if existed {
			col.values[id] = prev
		} else {
			delete(col.values, id)
		}
	})
}

func (t *table[R]) Insert(id models.ResourceID, value R) error {
	col, err := t.write()
	if err != nil {
		return err
	}
	t.remember(col, id)
	col.values[id] = value.Clone()
	return nil
}

func (t *table[R]) Remove(id models.ResourceID) (R, bool, error) {
	var zero R
	col, err := t.write()
	if err != nil {
		return zero, false, err
	}
	prev, ok := col.values[id]
	if !ok {
		return zero, false, nil
	}
	t.remember(col, id)
	delete(col.values, id)
	return prev.Clone(), true, nil
}

func (t *table[R]) Get(id models.ResourceID) (R, bool, error) {
	var zero R
	col, err := t.read()
	if err != nil || col == nil {
		return zero, false, err
	}
	value, ok := col.values[id]
	if !ok {
		return zero, false, nil
	}
	return value.Clone(), true, nil
}

func (t *table[R]) Modify(id models.ResourceID, f func(*R)) (bool, error) {
	col, err := t.write()
	if err != nil {
		return false, err
	}
	prev, ok := col.values[id]
	if !ok {
		return false, nil
	}
	value := prev.Clone()
	f(&value)
	t.remember(col, id)
	col.values[id] = value
	return true, nil
}

func (t *table[R]) InsertIfAbsent(id models.ResourceID, value R) (bool, error) {
	col, err := t.write()
	if err != nil {
		return false, err
	}
	if _, ok := col.values[id]; ok {
		return false, nil
	}
	t.remember(col, id)
	col.values[id] = value.Clone()
	return true, nil
}

func (t *table[R]) All() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		col, err := t.read()
		if err != nil {
			var zero R
			yield(zero, err)
			return
		}
		if col == nil {
			return
		}
		for _, value := range col.values {
			if !yield(value.Clone(), nil) {
				return
			}
		}
	}
}

func (t *table[R]) AllMut() iter.Seq2[*R, error] {
	return func(yield func(*R, error) bool) {
		col, err := t.write()
		if err != nil {
			yield(nil, err)
			return
		}
		for id, prev := range col.values {
			value := prev.Clone()
			more := yield(&value, nil)
			t.remember(col, id)
			col.values[id] = value
			if !more {
				return
			}
		}
	}
}

func (t *table[R]) Len() (int, error) {
	col, err := t.read()
	if err != nil || col == nil {
		return 0, err
	}
	return col.len(), nil
}
