package dagrator

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
)

// Migration describes the identity and dependencies of a single migration.
// Adapters define the richer migration types that carry the actual apply and
// revert behaviour.
type Migration interface {
	// ID uniquely identifies the migration within a graph.
	ID() uuid.UUID

	// Description is a human readable summary of the migration.
	Description() string

	// Dependencies lists the IDs of migrations that must be applied before
	// this one. Order and duplicates are not significant.
	Dependencies() []uuid.UUID
}

// Meta is a plain Migration implementation meant to be embedded by concrete
// migration types.
type Meta struct {
	id          uuid.UUID
	description string
	deps        []uuid.UUID
}

// NewMeta returns a Meta for the given ID, description and dependencies.
func NewMeta(id uuid.UUID, description string, deps ...uuid.UUID) Meta {
	return Meta{id: id, description: description, deps: slices.Clone(deps)}
}

func (m Meta) ID() uuid.UUID             { return m.id }
func (m Meta) Description() string       { return m.description }
func (m Meta) Dependencies() []uuid.UUID { return slices.Clone(m.deps) }

// Direction tells whether a migration is applied (Up) or reverted (Down).
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// IDSet is a set of migration IDs.
type IDSet map[uuid.UUID]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...uuid.UUID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id uuid.UUID) { s[id] = struct{}{} }

func (s IDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the IDs in ascending order.
func (s IDSet) Sorted() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, CompareIDs)
	return ids
}

// CompareIDs orders IDs by their bytes, which matches the ordering of their
// canonical string form.
func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
