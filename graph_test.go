package dagrator_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcomnes/dagrator"
	dt "github.com/bcomnes/dagrator/dagratortest"
)

var (
	idA = uuid.MustParse("0190f2a1-6c1e-7a01-8000-00000000000a")
	idB = uuid.MustParse("0190f2a1-6c1e-7a01-8000-00000000000b")
	idC = uuid.MustParse("0190f2a1-6c1e-7a01-8000-00000000000c")
	idD = uuid.MustParse("0190f2a1-6c1e-7a01-8000-00000000000d")
	idE = uuid.MustParse("0190f2a1-6c1e-7a01-8000-00000000000e")
)

func mig(id uuid.UUID, deps ...uuid.UUID) *dt.Migration {
	return dt.NewMigration(id, deps...)
}

func newGraph(t *testing.T, migs ...*dt.Migration) *dagrator.Graph[*dt.Migration] {
	t.Helper()
	g := dagrator.NewGraph[*dt.Migration]()
	for _, m := range migs {
		require.NoError(t, g.Register(m))
	}
	return g
}

func orderIDs(t *testing.T, g *dagrator.Graph[*dt.Migration]) []uuid.UUID {
	t.Helper()
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(order))
	for i, m := range order {
		ids[i] = m.ID()
	}
	return ids
}

func TestGraphRegisterDuplicate(t *testing.T) {
	g := newGraph(t, mig(idA), mig(idB, idA))

	err := g.Register(mig(idA, idB))
	var dupErr *dagrator.DuplicateIDError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, idA, dupErr.ID)

	// The failed registration must not have added the B -> A edge.
	assert.Equal(t, 2, g.Len())
	deps, err := g.DependenciesOf(idA)
	require.NoError(t, err)
	assert.Empty(t, deps)
	assert.Equal(t, []uuid.UUID{idA, idB}, orderIDs(t, g))
}

func TestGraphRegisterNilID(t *testing.T) {
	g := dagrator.NewGraph[*dt.Migration]()
	require.ErrorIs(t, g.Register(mig(uuid.Nil)), dagrator.ErrNilID)
}

func TestGraphRegisterCycle(t *testing.T) {
	tests := []struct {
		name  string
		setup []*dt.Migration
		bad   *dt.Migration
		cycle []uuid.UUID
	}{
		{
			name:  "self dependency",
			bad:   mig(idA, idA),
			cycle: []uuid.UUID{idA},
		},
		{
			name:  "two nodes",
			setup: []*dt.Migration{mig(idA, idB)},
			bad:   mig(idB, idA),
			cycle: []uuid.UUID{idB, idA},
		},
		{
			name:  "three nodes through forward references",
			setup: []*dt.Migration{mig(idA, idC), mig(idB, idA)},
			bad:   mig(idC, idB),
			cycle: []uuid.UUID{idC, idB, idA},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGraph(t, tt.setup...)
			err := g.Register(tt.bad)

			var cycErr *dagrator.CycleError
			require.ErrorAs(t, err, &cycErr)
			assert.Equal(t, tt.cycle, cycErr.Cycle)
			assert.False(t, g.Has(tt.bad.ID()))
			assert.Equal(t, len(tt.setup), g.Len())
		})
	}
}

func TestGraphCycleLeavesGraphUsable(t *testing.T) {
	g := newGraph(t, mig(idA, idC), mig(idB, idA))

	var cycErr *dagrator.CycleError
	require.ErrorAs(t, g.Register(mig(idC, idB)), &cycErr)
	assert.Equal(t, "cyclic dependency: "+idC.String()+" -> "+idB.String()+" -> "+idA.String()+" -> "+idC.String(), cycErr.Error())

	// A still waits on C, so a correct C can be registered afterwards.
	var unresolved *dagrator.UnresolvedDependencyError
	require.ErrorAs(t, g.Validate(), &unresolved)
	assert.Equal(t, idA, unresolved.ID)
	assert.Equal(t, idC, unresolved.Missing)

	require.NoError(t, g.Register(mig(idC)))
	require.NoError(t, g.Validate())
	assert.Equal(t, []uuid.UUID{idC, idA, idB}, orderIDs(t, g))

	deps, err := g.DependenciesOf(idA)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{idC}, deps)
}

func TestGraphForwardReference(t *testing.T) {
	g := newGraph(t, mig(idC, idB), mig(idB, idA))

	var unresolved *dagrator.UnresolvedDependencyError
	require.ErrorAs(t, g.Validate(), &unresolved)
	assert.Equal(t, idB, unresolved.ID)
	assert.Equal(t, idA, unresolved.Missing)

	_, err := g.TopologicalOrder()
	require.ErrorAs(t, err, &unresolved)

	require.NoError(t, g.Register(mig(idA)))
	require.NoError(t, g.Validate())
	assert.Equal(t, []uuid.UUID{idA, idB, idC}, orderIDs(t, g))
}

func TestGraphQueries(t *testing.T) {
	// Diamond: B and C depend on A, D depends on B and C. E is independent.
	g := newGraph(t, mig(idD, idB, idC), mig(idB, idA), mig(idC, idA), mig(idA), mig(idE))

	tests := []struct {
		name string
		fn   func(uuid.UUID) ([]uuid.UUID, error)
		id   uuid.UUID
		want []uuid.UUID
	}{
		{"dependencies of D", g.DependenciesOf, idD, []uuid.UUID{idB, idC}},
		{"dependencies of A", g.DependenciesOf, idA, nil},
		{"dependents of A", g.DependentsOf, idA, []uuid.UUID{idB, idC}},
		{"dependents of D", g.DependentsOf, idD, nil},
		{"ancestors of D", g.AncestorsOf, idD, []uuid.UUID{idA, idB, idC}},
		{"ancestors of B", g.AncestorsOf, idB, []uuid.UUID{idA}},
		{"descendants of A", g.DescendantsOf, idA, []uuid.UUID{idB, idC, idD}},
		{"descendants of E", g.DescendantsOf, idE, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.id)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []uuid.UUID{idD, idE}, g.Frontier())
	assert.Equal(t, []uuid.UUID{idA, idE}, g.Roots())
	assert.Equal(t, []uuid.UUID{idA, idB, idC, idD, idE}, orderIDs(t, g))

	_, err := g.AncestorsOf(uuid.New())
	var unknown *dagrator.UnknownMigrationError
	assert.True(t, errors.As(err, &unknown))
}

func TestGraphTopologicalOrderTieBreak(t *testing.T) {
	// B and E start ready; C becomes ready after B and still sorts before E.
	g := newGraph(t, mig(idE), mig(idB), mig(idA, idE), mig(idC, idB))
	assert.Equal(t, []uuid.UUID{idB, idC, idE, idA}, orderIDs(t, g))

	// Repeated calls on an unchanged graph return the same order.
	assert.Equal(t, orderIDs(t, g), orderIDs(t, g))
}
