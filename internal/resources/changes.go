package resources

import (
	"opendut-carl/internal/domain/ports"
)

// ChangeOp is the kind of change made to a resource
type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeRemove ChangeOp = "remove"
)

// Change describes one write of a committed transaction.
// An empty ID stands for every value of the kind.
type Change struct {
	Kind ports.Kind
	ID   string
	Op   ChangeOp
}

// ChangeSet lists the writes of a committed transaction in order
type ChangeSet []Change

// Kinds returns the distinct kinds touched by the change set
func (cs ChangeSet) Kinds() []ports.Kind {
	seen := make(map[ports.Kind]struct{}, len(cs))
	var kinds []ports.Kind
	for _, c := range cs {
		if _, ok := seen[c.Kind]; ok {
			continue
		}
		seen[c.Kind] = struct{}{}
		kinds = append(kinds, c.Kind)
	}
	return kinds
}
