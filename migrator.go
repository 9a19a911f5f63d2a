package dagrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// Option configures a Migrator.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report planning and execution progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Migrator plans and runs migrations from a Graph against an Adapter.
//
// A Migrator keeps no state between runs: the applied set is read from the
// adapter at the start of every planning call. Runs against the same store
// must not overlap; adapters implementing Locker enforce this themselves,
// otherwise the caller has to serialize them.
type Migrator[M Migration] struct {
	graph   *Graph[M]
	adapter Adapter[M]
	logger  *slog.Logger
}

// NewMigrator creates a Migrator. A nil graph starts a new empty one, to be
// filled through Register.
func NewMigrator[M Migration](graph *Graph[M], adapter Adapter[M], opts ...Option) *Migrator[M] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if graph == nil {
		graph = NewGraph[M]()
	}
	return &Migrator[M]{
		graph:   graph,
		adapter: adapter,
		logger:  o.logger,
	}
}

// Graph returns the migration graph used by the Migrator.
func (mg *Migrator[M]) Graph() *Graph[M] {
	return mg.graph
}

// Register adds a migration to the underlying graph. It fails with
// ErrGraphSealed once the Migrator has planned a run.
func (mg *Migrator[M]) Register(m M) error {
	return mg.graph.Register(m)
}

// PlanApply computes the steps ApplyTo would run, without running them.
func (mg *Migrator[M]) PlanApply(ctx context.Context, target Target) (Plan[M], error) {
	return mg.planOnly(ctx, Up, target)
}

// PlanRevert computes the steps RevertTo would run, without running them.
func (mg *Migrator[M]) PlanRevert(ctx context.Context, target Target) (Plan[M], error) {
	return mg.planOnly(ctx, Down, target)
}

// ApplyTo applies every missing migration needed to reach target, each after
// all of its dependencies. It stops at the first failing step.
func (mg *Migrator[M]) ApplyTo(ctx context.Context, target Target) (*Result[M], error) {
	return mg.run(ctx, Up, target)
}

// RevertTo reverts every applied migration beyond target, each after all of
// its dependents. It stops at the first failing step.
func (mg *Migrator[M]) RevertTo(ctx context.Context, target Target) (*Result[M], error) {
	return mg.run(ctx, Down, target)
}

func (mg *Migrator[M]) planOnly(ctx context.Context, dir Direction, target Target) (Plan[M], error) {
	if err := mg.graph.seal(); err != nil {
		return nil, err
	}
	applied, err := mg.applied(ctx)
	if err != nil {
		return nil, err
	}
	return mg.plan(dir, target, applied)
}

func (mg *Migrator[M]) run(ctx context.Context, dir Direction, target Target) (*Result[M], error) {
	res := &Result[M]{Target: target, State: StatePlanning}
	logger := mg.logger.With("direction", dir.String(), "target", target.String())
	logger.Debug("planning migrations")

	fail := func(err error) (*Result[M], error) {
		res.State = StateFailed
		return res, err
	}

	if err := mg.graph.seal(); err != nil {
		return fail(err)
	}

	if locker, ok := mg.adapter.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return fail(&AdapterError{Op: "lock", Err: err})
		}
		defer unlock()
	}

	applied, err := mg.applied(ctx)
	if err != nil {
		return fail(err)
	}
	plan, err := mg.plan(dir, target, applied)
	if err != nil {
		return fail(err)
	}
	res.Plan = plan

	if len(plan) == 0 {
		res.State = StateCompleted
		logger.Info("store already at target")
		return res, nil
	}

	res.State = StateExecuting
	logger.Debug("executing plan", "steps", len(plan))
	for i, step := range plan {
		logger.Info("running migration",
			"id", step.Migration.ID(),
			"description", step.Migration.Description())
		if err := mg.execute(ctx, step); err != nil {
			res.State = StateFailed
			res.Failed = &plan[i]
			res.Remaining = slices.Clone(plan[i+1:])
			logger.Error("migration failed",
				"id", step.Migration.ID(),
				"completed", len(res.Completed),
				"remaining", len(res.Remaining),
				"error", err)
			return res, err
		}
		res.Completed = append(res.Completed, step)
	}

	res.State = StateCompleted
	logger.Info("migrations complete", "steps", len(res.Completed))
	return res, nil
}

// applied reads the applied set and rejects IDs the graph does not know.
func (mg *Migrator[M]) applied(ctx context.Context) (IDSet, error) {
	applied, err := mg.adapter.AppliedMigrations(ctx)
	if err != nil {
		return nil, &AdapterError{Op: "query applied migrations", Err: err}
	}
	var unknown []uuid.UUID
	for id := range applied {
		if !mg.graph.Has(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		slices.SortFunc(unknown, CompareIDs)
		return nil, &AppliedUnregisteredError{IDs: unknown}
	}
	return applied, nil
}

// plan selects the target migrations and orders them along the cached
// topological order, reversed for Down.
func (mg *Migrator[M]) plan(dir Direction, target Target, applied IDSet) (Plan[M], error) {
	g := mg.graph
	mask := make([]bool, len(g.nodes))
	switch target.Kind {
	case TargetAll:
		for i := range mask {
			mask[i] = true
		}
	case TargetTo, TargetBefore:
		idx, ok := g.index[target.ID]
		if !ok {
			return nil, &UnknownMigrationError{ID: target.ID}
		}
		// Applying follows dependencies, reverting follows dependents.
		mask = g.closure(idx, dir)
		includeTarget := (dir == Up) == (target.Kind == TargetTo)
		mask[idx] = includeTarget
	default:
		return nil, fmt.Errorf("unsupported target kind %d", target.Kind)
	}

	var plan Plan[M]
	for i := range g.order {
		pos := i
		if dir == Down {
			pos = len(g.order) - 1 - i
		}
		idx := g.order[pos]
		if !mask[idx] {
			continue
		}
		isApplied := applied.Has(g.nodes[idx].id)
		if (dir == Up && isApplied) || (dir == Down && !isApplied) {
			continue
		}
		plan = append(plan, Step[M]{Migration: g.nodes[idx].m, Direction: dir})
	}
	return plan, nil
}

func (mg *Migrator[M]) execute(ctx context.Context, step Step[M]) error {
	if txa, ok := mg.adapter.(TxAdapter[M]); ok {
		return mg.executeTx(ctx, txa, step)
	}

	m := step.Migration
	run, record := mg.adapter.Apply, mg.adapter.RecordApplied
	if step.Direction == Down {
		run, record = mg.adapter.Revert, mg.adapter.RecordReverted
	}
	if err := run(ctx, m); err != nil {
		return &AdapterError{Op: opName(step.Direction), ID: m.ID(), Direction: step.Direction, Err: err}
	}
	if err := record(ctx, m); err != nil {
		return &BookkeepingError{ID: m.ID(), Direction: step.Direction, Err: err}
	}
	return nil
}

func (mg *Migrator[M]) executeTx(ctx context.Context, txa TxAdapter[M], step Step[M]) error {
	m := step.Migration
	tx, err := txa.Begin(ctx)
	if err != nil {
		return &AdapterError{Op: "begin", ID: m.ID(), Direction: step.Direction, Err: err}
	}

	run, record := tx.Apply, tx.RecordApplied
	if step.Direction == Down {
		run, record = tx.Revert, tx.RecordReverted
	}
	if err := run(ctx, m); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return &AdapterError{Op: opName(step.Direction), ID: m.ID(), Direction: step.Direction, Err: err}
	}
	if err := record(ctx, m); err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return &BookkeepingError{ID: m.ID(), Direction: step.Direction, RolledBack: rbErr == nil, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &BookkeepingError{ID: m.ID(), Direction: step.Direction, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func opName(dir Direction) string {
	if dir == Down {
		return "revert"
	}
	return "apply"
}

// StatusEntry pairs a registered migration with whether it is applied.
type StatusEntry[M Migration] struct {
	Migration M
	Applied   bool
}

// Status describes the store against the graph.
type Status[M Migration] struct {
	// Migrations holds every registered migration in topological order.
	Migrations []StatusEntry[M]
	// Unregistered lists applied IDs that the graph does not know.
	Unregistered []uuid.UUID
}

// Status reads the applied set and reports every migration's state. Unlike
// planning calls it reports drift instead of failing on it.
func (mg *Migrator[M]) Status(ctx context.Context) (*Status[M], error) {
	if err := mg.graph.seal(); err != nil {
		return nil, err
	}
	applied, err := mg.adapter.AppliedMigrations(ctx)
	if err != nil {
		return nil, &AdapterError{Op: "query applied migrations", Err: err}
	}

	st := &Status[M]{Migrations: make([]StatusEntry[M], 0, len(mg.graph.order))}
	for _, idx := range mg.graph.order {
		n := mg.graph.nodes[idx]
		st.Migrations = append(st.Migrations, StatusEntry[M]{Migration: n.m, Applied: applied.Has(n.id)})
	}
	for _, id := range applied.Sorted() {
		if !mg.graph.Has(id) {
			st.Unregistered = append(st.Unregistered, id)
		}
	}
	return st, nil
}
