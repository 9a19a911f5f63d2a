package dagratortest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bcomnes/dagrator"
)

// Fixed IDs used by the suite, in ascending order.
var (
	ID1 = uuid.MustParse("0190f2a1-6c1e-7a01-8000-000000000001")
	ID2 = uuid.MustParse("0190f2a1-6c1e-7a01-8000-000000000002")
	ID3 = uuid.MustParse("0190f2a1-6c1e-7a01-8000-000000000003")
	ID4 = uuid.MustParse("0190f2a1-6c1e-7a01-8000-000000000004")
	ID5 = uuid.MustParse("0190f2a1-6c1e-7a01-8000-000000000005")
)

// AdapterFactory returns a fresh adapter over an empty store.
type AdapterFactory[M dagrator.Migration] func(t *testing.T) dagrator.Adapter[M]

// MockFactory builds a no-op migration of the adapter's migration type.
type MockFactory[M dagrator.Migration] func(id uuid.UUID, deps ...uuid.UUID) M

// RunAdapterSuite runs the generic apply/revert scenarios against adapters
// built by newAdapter, each scenario as a subtest on a fresh adapter.
func RunAdapterSuite[M dagrator.Migration](t *testing.T, newAdapter AdapterFactory[M], mock MockFactory[M]) {
	t.Run("SingleMigration", func(t *testing.T) {
		s := newSuite(t, newAdapter, mock, map[uuid.UUID][]uuid.UUID{ID1: nil})

		s.apply(dagrator.All)
		s.requireApplied(ID1)

		s.revert(dagrator.All)
		s.requireApplied()
	})

	t.Run("Chain", func(t *testing.T) {
		s := newSuite(t, newAdapter, mock, map[uuid.UUID][]uuid.UUID{
			ID1: nil,
			ID2: {ID1},
			ID3: {ID2},
		})

		s.apply(dagrator.To(ID2))
		s.requireApplied(ID1, ID2)

		s.revert(dagrator.To(ID1))
		s.requireApplied(ID1)
	})

	t.Run("MultiComponent", func(t *testing.T) {
		s := newSuite(t, newAdapter, mock, map[uuid.UUID][]uuid.UUID{
			ID1: nil,
			ID2: {ID1},
			ID3: nil,
			ID4: {ID3},
		})

		s.apply(dagrator.To(ID2))
		s.requireApplied(ID1, ID2)

		s.revert(dagrator.To(ID1))
		s.requireApplied(ID1)

		s.apply(dagrator.To(ID3))
		s.requireApplied(ID1, ID3)

		s.apply(dagrator.All)
		s.requireApplied(ID1, ID2, ID3, ID4)

		s.revert(dagrator.All)
		s.requireApplied()
	})

	t.Run("Branching", func(t *testing.T) {
		s := newSuite(t, newAdapter, mock, map[uuid.UUID][]uuid.UUID{
			ID1: nil,
			ID2: nil,
			ID3: {ID1, ID2},
			ID4: {ID3},
			ID5: {ID3},
		})

		s.apply(dagrator.To(ID4))
		s.requireApplied(ID1, ID2, ID3, ID4)

		s.revert(dagrator.To(ID1))
		s.requireApplied(ID1, ID2)
	})

	t.Run("DiamondRevertBefore", func(t *testing.T) {
		s := newSuite(t, newAdapter, mock, map[uuid.UUID][]uuid.UUID{
			ID1: nil,
			ID2: {ID1},
			ID3: {ID1},
			ID4: {ID2, ID3},
		})

		res := s.apply(dagrator.All)
		require.Equal(t, []uuid.UUID{ID1, ID2, ID3, ID4}, res.Plan.IDs())

		res = s.revert(dagrator.Before(ID1))
		require.Equal(t, []uuid.UUID{ID4, ID3, ID2, ID1}, res.Plan.IDs())
		s.requireApplied()
	})

	t.Run("Idempotent", func(t *testing.T) {
		s := newSuite(t, newAdapter, mock, map[uuid.UUID][]uuid.UUID{
			ID1: nil,
			ID2: {ID1},
		})

		s.apply(dagrator.All)
		res := s.apply(dagrator.All)
		require.Empty(t, res.Plan)
		require.Equal(t, dagrator.StateCompleted, res.State)
		s.requireApplied(ID1, ID2)
	})
}

type suite[M dagrator.Migration] struct {
	t        *testing.T
	ctx      context.Context
	adapter  dagrator.Adapter[M]
	migrator *dagrator.Migrator[M]
}

func newSuite[M dagrator.Migration](
	t *testing.T, newAdapter AdapterFactory[M], mock MockFactory[M], deps map[uuid.UUID][]uuid.UUID,
) *suite[M] {
	t.Helper()
	adapter := newAdapter(t)
	graph := dagrator.NewGraph[M]()
	for _, id := range []uuid.UUID{ID1, ID2, ID3, ID4, ID5} {
		d, ok := deps[id]
		if !ok {
			continue
		}
		require.NoError(t, graph.Register(mock(id, d...)))
	}
	return &suite[M]{
		t:        t,
		ctx:      context.Background(),
		adapter:  adapter,
		migrator: dagrator.NewMigrator(graph, adapter),
	}
}

func (s *suite[M]) apply(target dagrator.Target) *dagrator.Result[M] {
	s.t.Helper()
	res, err := s.migrator.ApplyTo(s.ctx, target)
	require.NoError(s.t, err, "apply to %s", target)
	require.Equal(s.t, dagrator.StateCompleted, res.State)
	return res
}

func (s *suite[M]) revert(target dagrator.Target) *dagrator.Result[M] {
	s.t.Helper()
	res, err := s.migrator.RevertTo(s.ctx, target)
	require.NoError(s.t, err, "revert to %s", target)
	require.Equal(s.t, dagrator.StateCompleted, res.State)
	return res
}

func (s *suite[M]) requireApplied(ids ...uuid.UUID) {
	s.t.Helper()
	applied, err := s.adapter.AppliedMigrations(s.ctx)
	require.NoError(s.t, err)
	want := ids
	if want == nil {
		want = []uuid.UUID{}
	}
	got := applied.Sorted()
	require.Equal(s.t, want, got)
}
