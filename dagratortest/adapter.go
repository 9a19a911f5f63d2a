// Package dagratortest provides helpers for testing dagrator adapters: a
// trivial migration type, an in-memory adapter and a conformance suite that
// any Adapter implementation can run.
package dagratortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bcomnes/dagrator"
)

// Migration is a no-op migration carrying only identity and dependencies.
type Migration struct {
	dagrator.Meta
}

// NewMigration returns a Migration with the given ID and dependencies.
func NewMigration(id uuid.UUID, deps ...uuid.UUID) *Migration {
	return &Migration{Meta: dagrator.NewMeta(id, "test migration "+id.String()[:8], deps...)}
}

// Call records one adapter invocation made by the Migrator.
type Call struct {
	Op string
	ID uuid.UUID
}

func (c Call) String() string {
	return fmt.Sprintf("%s %s", c.Op, c.ID)
}

// MemAdapter is an in-memory dagrator.Adapter. Failures can be injected per
// migration ID and operation.
type MemAdapter[M dagrator.Migration] struct {
	mu      sync.Mutex
	applied dagrator.IDSet
	calls   []Call

	// FailApplied makes AppliedMigrations fail.
	FailApplied error
	// Fail maps an operation ("apply", "revert", "record-applied",
	// "record-reverted") and migration ID to the error returned.
	Fail map[Call]error
}

var _ dagrator.Adapter[*Migration] = (*MemAdapter[*Migration])(nil)

// NewMemAdapter returns an adapter whose store already has ids applied.
func NewMemAdapter[M dagrator.Migration](ids ...uuid.UUID) *MemAdapter[M] {
	return &MemAdapter[M]{
		applied: dagrator.NewIDSet(ids...),
		Fail:    make(map[Call]error),
	}
}

// FailOn injects err for op on the migration id.
func (a *MemAdapter[M]) FailOn(op string, id uuid.UUID, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Fail[Call{Op: op, ID: id}] = err
}

// Calls returns the apply, revert and record calls made so far.
func (a *MemAdapter[M]) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// AppliedMigrations implements dagrator.Adapter.
func (a *MemAdapter[M]) AppliedMigrations(context.Context) (dagrator.IDSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailApplied != nil {
		return nil, a.FailApplied
	}
	out := make(dagrator.IDSet, len(a.applied))
	for id := range a.applied {
		out.Add(id)
	}
	return out, nil
}

// Apply implements dagrator.Adapter.
func (a *MemAdapter[M]) Apply(_ context.Context, m M) error {
	return a.do("apply", m.ID(), nil)
}

// Revert implements dagrator.Adapter.
func (a *MemAdapter[M]) Revert(_ context.Context, m M) error {
	return a.do("revert", m.ID(), nil)
}

// RecordApplied implements dagrator.Adapter.
func (a *MemAdapter[M]) RecordApplied(_ context.Context, m M) error {
	return a.do("record-applied", m.ID(), func() { a.applied.Add(m.ID()) })
}

// RecordReverted implements dagrator.Adapter.
func (a *MemAdapter[M]) RecordReverted(_ context.Context, m M) error {
	return a.do("record-reverted", m.ID(), func() { delete(a.applied, m.ID()) })
}

func (a *MemAdapter[M]) do(op string, id uuid.UUID, effect func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	call := Call{Op: op, ID: id}
	a.calls = append(a.calls, call)
	if err := a.Fail[call]; err != nil {
		return err
	}
	if effect != nil {
		effect()
	}
	return nil
}
