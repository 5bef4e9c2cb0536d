package resources

import (
	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
)

// Update is a pending change to the value of one key in one column.
// Modify calls are applied in order when the value exists; OrInsert stores a
// value when it does not. The first failure stops the chain.
type Update[K models.Key, R ports.Resource[R]] struct {
	tx     *Transaction
	column Column[K, R]
	key    K
	err    error
}

// Modify applies f to the stored value. Absent values are left alone.
func (u *Update[K, R]) Modify(f func(*R)) *Update[K, R] {
	if u.err != nil {
		return u
	}
	t, err := u.column.table(u.tx, "modify")
	if err != nil {
		u.err = err
		return u
	}
	id := u.column.IntoID(u.key)
	found, err := t.Modify(id, f)
	if err != nil {
		u.err = u.column.fail(u.tx, "modify", u.key, err)
		return u
	}
	if found {
		u.tx.record(u.column.kind, id, ChangeUpsert)
	}
	return u
}

// OrInsert stores value when the key has no value yet
func (u *Update[K, R]) OrInsert(value R) error {
	if u.err != nil {
		return u.err
	}
	t, err := u.column.table(u.tx, "insert")
	if err != nil {
		u.err = err
		return err
	}
	id := u.column.IntoID(u.key)
	inserted, err := t.InsertIfAbsent(id, value)
	if err != nil {
		u.err = u.column.fail(u.tx, "insert", u.key, err)
		return u.err
	}
	if inserted {
		u.tx.record(u.column.kind, id, ChangeUpsert)
	}
	return nil
}

// Err returns the failure of an earlier Modify
func (u *Update[K, R]) Err() error {
	return u.err
}
