package dagrator

import (
	"context"
)

// Adapter connects the Migrator to a concrete store. M is the migration type
// the adapter knows how to run.
//
// Every call may block on store I/O; the Migrator adds no timeout of its own,
// so cancellation is driven by ctx.
type Adapter[M Migration] interface {
	// AppliedMigrations returns the IDs currently recorded as applied.
	AppliedMigrations(ctx context.Context) (IDSet, error)

	// Apply runs the forward action of m against the store.
	Apply(ctx context.Context, m M) error

	// Revert runs the backward action of m against the store.
	Revert(ctx context.Context, m M) error

	// RecordApplied persists that m is applied.
	RecordApplied(ctx context.Context, m M) error

	// RecordReverted persists that m is no longer applied.
	RecordReverted(ctx context.Context, m M) error
}

// Tx is a unit of work covering one migration and its bookkeeping.
type Tx[M Migration] interface {
	Apply(ctx context.Context, m M) error
	Revert(ctx context.Context, m M) error
	RecordApplied(ctx context.Context, m M) error
	RecordReverted(ctx context.Context, m M) error
	Commit() error
	Rollback() error
}

// TxAdapter is implemented by adapters that can run a migration together with
// its bookkeeping in a single transaction. The Migrator prefers Begin over the
// plain Adapter methods when it is available.
type TxAdapter[M Migration] interface {
	Adapter[M]
	Begin(ctx context.Context) (Tx[M], error)
}

// Locker is implemented by adapters that can hold an exclusive, store-wide
// lock for the duration of a run. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}
