package dagrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrGraphSealed is returned when a migration is registered after the graph
// has been used for planning.
var ErrGraphSealed = errors.New("migration graph is sealed: register all migrations before planning")

// ErrNilID is returned when a migration reports uuid.Nil as its ID.
var ErrNilID = errors.New("migration ID must not be the nil UUID")

// DuplicateIDError is returned when a migration ID is registered twice.
type DuplicateIDError struct {
	ID uuid.UUID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate migration ID %s", e.ID)
}

// UnresolvedDependencyError reports a dependency that no registered migration
// satisfies.
type UnresolvedDependencyError struct {
	ID      uuid.UUID
	Missing uuid.UUID
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("migration %s depends on unregistered migration %s", e.ID, e.Missing)
}

// CycleError reports a dependency cycle. Cycle lists the migration IDs along
// the cycle, each depending on the next; the last depends on the first.
type CycleError struct {
	Cycle []uuid.UUID
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "cyclic dependency"
	}
	path := make([]uuid.UUID, 0, len(e.Cycle)+1)
	path = append(path, e.Cycle...)
	path = append(path, e.Cycle[0])
	return fmt.Sprintf("cyclic dependency: %s", joinIDs(path, " -> "))
}

// UnknownMigrationError is returned when a requested migration ID is not in
// the graph.
type UnknownMigrationError struct {
	ID uuid.UUID
}

func (e *UnknownMigrationError) Error() string {
	return fmt.Sprintf("unknown migration ID %s", e.ID)
}

// AppliedUnregisteredError reports migrations recorded as applied in the store
// that are not registered in the graph.
type AppliedUnregisteredError struct {
	IDs []uuid.UUID
}

func (e *AppliedUnregisteredError) Error() string {
	return fmt.Sprintf("store has applied migrations that are not registered: %s", joinIDs(e.IDs, ", "))
}

// AdapterError wraps a failure returned by the adapter. ID is uuid.Nil when
// the failing call was not tied to a single migration.
type AdapterError struct {
	Op        string
	ID        uuid.UUID
	Direction Direction
	Err       error
}

func (e *AdapterError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("adapter %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("adapter %s of migration %s (%s) failed: %v", e.Op, e.ID, e.Direction, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// BookkeepingError is returned when a migration ran but recording its outcome
// failed. Unless RolledBack is set, the store schema and its recorded history
// have diverged and need manual attention.
type BookkeepingError struct {
	ID         uuid.UUID
	Direction  Direction
	RolledBack bool
	Err        error
}

func (e *BookkeepingError) Error() string {
	state := "store schema and history have diverged"
	if e.RolledBack {
		state = "migration was rolled back"
	}
	return fmt.Sprintf("recording migration %s (%s) failed, %s: %v", e.ID, e.Direction, state, e.Err)
}

func (e *BookkeepingError) Unwrap() error {
	return e.Err
}

func joinIDs(ids []uuid.UUID, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, sep)
}
