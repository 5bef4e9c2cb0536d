package pg

import (
	"encoding/json"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
)

var (
	sqlUpsert = fmt.Sprintf(`INSERT INTO %s (kind, id, value) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (kind, id) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, TblResources.FQN())

	sqlInsertIfAbsent = fmt.Sprintf(`INSERT INTO %s (kind, id, value) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (kind, id) DO NOTHING`, TblResources.FQN())

	sqlUpdate = fmt.Sprintf(`UPDATE %s SET value = $3::jsonb, updated_at = now() WHERE kind = $1 AND id = $2`,
		TblResources.FQN())

	sqlDelete = fmt.Sprintf(`DELETE FROM %s WHERE kind = $1 AND id = $2 RETURNING value`, TblResources.FQN())

	sqlSelectOne = fmt.Sprintf(`SELECT value FROM %s WHERE kind = $1 AND id = $2`, TblResources.FQN())

	sqlSelectOneForUpdate = sqlSelectOne + ` FOR UPDATE`

	sqlSelectAll = fmt.Sprintf(`SELECT id, value FROM %s WHERE kind = $1 ORDER BY created_at, id`,
		TblResources.FQN())

	sqlSelectAllForUpdate = sqlSelectAll + ` FOR UPDATE`

	sqlCount = fmt.Sprintf(`SELECT count(*) FROM %s WHERE kind = $1`, TblResources.FQN())
)

// TableOf returns the column of the kind as seen through the session.
// Only persistable resource types can be stored in the database.
func TableOf[R ports.Resource[R]](s *Session, kind ports.Kind) (ports.Table[R], error) {
	var zero R
	if _, ok := any(zero).(ports.Persistable); !ok {
		return nil, errors.WithMessagef(ports.ErrNotPersistable, "%T", zero)
	}
	return &table[R]{session: s, kind: kind}, nil
}

type table[R ports.Resource[R]] struct {
	session *Session
	kind    ports.Kind
}

type row struct {
	id    pgtype.UUID
	value []byte
}

func pgID(id models.ResourceID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func encode[R any](value R) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrapf(err, "encode %T", value)
	}
	return string(data), nil
}

func decode[R any](data []byte) (R, error) {
	var value R
	if err := json.Unmarshal(data, &value); err != nil {
		return value, errors.Wrapf(err, "decode %T", value)
	}
	return value, nil
}

func (t *table[R]) wrap(err error, op string, id models.ResourceID) error {
	return errors.Wrapf(err, "%s %s/%s", op, t.kind, id)
}

func (t *table[R]) Insert(id models.ResourceID, value R) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if _, err := t.session.exec(sqlUpsert, string(t.kind), pgID(id), data); err != nil {
		return t.wrap(err, "insert", id)
	}
	return nil
}

func (t *table[R]) Remove(id models.ResourceID) (R, bool, error) {
	var zero R
	if err := t.session.checkWrite(); err != nil {
		return zero, false, err
	}
	return t.selectOne(sqlDelete, "remove", id)
}

func (t *table[R]) Get(id models.ResourceID) (R, bool, error) {
	return t.selectOne(sqlSelectOne, "get", id)
}

func (t *table[R]) selectOne(query, op string, id models.ResourceID) (R, bool, error) {
	var zero R
	r, err := t.session.queryRow(query, string(t.kind), pgID(id))
	if err != nil {
		return zero, false, err
	}
	var data []byte
	if err := r.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, t.wrap(err, op, id)
	}
	value, err := decode[R](data)
	if err != nil {
		return zero, false, t.wrap(err, op, id)
	}
	return value, true, nil
}

func (t *table[R]) Modify(id models.ResourceID, f func(*R)) (bool, error) {
	if err := t.session.checkWrite(); err != nil {
		return false, err
	}
	value, ok, err := t.selectOne(sqlSelectOneForUpdate, "modify", id)
	if err != nil || !ok {
		return false, err
	}
	f(&value)
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	if _, err := t.session.exec(sqlUpdate, string(t.kind), pgID(id), data); err != nil {
		return false, t.wrap(err, "modify", id)
	}
	return true, nil
}

func (t *table[R]) InsertIfAbsent(id models.ResourceID, value R) (bool, error) {
	data, err := encode(value)
	if err != nil {
		return false, err
	}
	tag, err := t.session.exec(sqlInsertIfAbsent, string(t.kind), pgID(id), data)
	if err != nil {
		return false, t.wrap(err, "insert", id)
	}
	return tag.RowsAffected() == 1, nil
}

// rows loads the whole column up front so the caller may use the session
// while iterating.
func (t *table[R]) rows(query string) ([]row, error) {
	rows, err := t.session.query(query, string(t.kind))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", t.kind)
	}
	collected, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (row, error) {
		var out row
		err := r.Scan(&out.id, &out.value)
		return out, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", t.kind)
	}
	return collected, nil
}

func (t *table[R]) All() iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		rows, err := t.rows(sqlSelectAll)
		if err != nil {
			yield(zero, err)
			return
		}
		for _, r := range rows {
			value, err := decode[R](r.value)
			if err != nil {
				yield(zero, t.wrap(err, "list", models.ResourceID(r.id.Bytes)))
				return
			}
			if !yield(value, nil) {
				return
			}
		}
	}
}

func (t *table[R]) AllMut() iter.Seq2[*R, error] {
	return func(yield func(*R, error) bool) {
		if err := t.session.checkWrite(); err != nil {
			yield(nil, err)
			return
		}
		rows, err := t.rows(sqlSelectAllForUpdate)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range rows {
			id := models.ResourceID(r.id.Bytes)
			value, err := decode[R](r.value)
			if err != nil {
				yield(nil, t.wrap(err, "list", id))
				return
			}
			before, err := encode(value)
			if err != nil {
				yield(nil, err)
				return
			}
			more := yield(&value, nil)
			if err := t.writeBack(id, before, value); err != nil {
				if more {
					yield(nil, err)
				} else {
					t.session.fail(err)
				}
				return
			}
			if !more {
				return
			}
		}
	}
}

// writeBack stores value if its encoding changed while it was yielded
func (t *table[R]) writeBack(id models.ResourceID, before string, value R) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if data == before {
		return nil
	}
	if _, err := t.session.exec(sqlUpdate, string(t.kind), pgID(id), data); err != nil {
		return t.wrap(err, "modify", id)
	}
	return nil
}

func (t *table[R]) Len() (int, error) {
	r, err := t.session.queryRow(sqlCount, string(t.kind))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", t.kind)
	}
	return int(n), nil
}
