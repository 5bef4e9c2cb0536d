package mem

import (
	"fmt"
	"sync"

	"opendut-carl/internal/domain/models"
	"opendut-carl/internal/domain/ports"
)

// anyColumn is a column with its value type erased
type anyColumn interface {
	len() int
}

// column holds the values of a single resource kind
type column[R any] struct {
	values map[models.ResourceID]R
}

func (c *column[R]) len() int {
	return len(c.values)
}

// MemDB in-memory database, one typed column per resource kind
type MemDB struct {
	columns map[ports.Kind]anyColumn
	mu      sync.RWMutex
}

// NewMemDB creates a new in-memory database
func NewMemDB() *MemDB {
	return &MemDB{
		columns: make(map[ports.Kind]anyColumn),
	}
}

// lookupColumn returns the column of the kind, or nil when it was never written
func lookupColumn[R any](db *MemDB, kind ports.Kind) *column[R] {
	db.mu.RLock()
	defer db.mu.RUnlock()
	col, ok := db.columns[kind]
	if !ok {
		return nil
	}
	return typed[R](kind, col)
}

// ensureColumn returns the column of the kind, creating it on first use
func ensureColumn[R any](db *MemDB, kind ports.Kind) *column[R] {
	db.mu.Lock()
	defer db.mu.Unlock()
	if col, ok := db.columns[kind]; ok {
		return typed[R](kind, col)
	}
	col := &column[R]{values: make(map[models.ResourceID]R)}
	db.columns[kind] = col
	return col
}

func typed[R any](kind ports.Kind, col anyColumn) *column[R] {
	c, ok := col.(*column[R])
	if !ok {
		var zero R
		panic(fmt.Sprintf("column '%s' does not hold %T", kind, zero))
	}
	return c
}

// IsEmpty reports whether no column holds a value
func (db *MemDB) IsEmpty() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, col := range db.columns {
		if col.len() > 0 {
			return false
		}
	}
	return true
}
