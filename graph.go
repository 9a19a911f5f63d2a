package dagrator

import (
	"container/heap"
	"slices"

	"github.com/google/uuid"
)

type node[M Migration] struct {
	m          M
	id         uuid.UUID
	deps       []int
	dependents []int
	// missing holds dependency IDs that were not registered yet.
	missing []uuid.UUID
}

// Graph is the dependency DAG of registered migrations. Edges point from a
// migration to each of its dependencies.
//
// A Graph is built with Register and becomes read-only once a Migrator plans
// against it. It is not safe for concurrent registration.
type Graph[M Migration] struct {
	nodes   []node[M]
	index   map[uuid.UUID]int
	waiting map[uuid.UUID][]int

	sealed bool
	order  []int
	rank   []int
}

// NewGraph returns an empty migration graph.
func NewGraph[M Migration]() *Graph[M] {
	return &Graph[M]{
		index:   make(map[uuid.UUID]int),
		waiting: make(map[uuid.UUID][]int),
	}
}

// Register adds a migration to the graph.
//
// Dependencies may reference migrations registered later; Validate reports the
// ones that never get registered. A dependency that would close a cycle is
// rejected immediately with a *CycleError. A failed registration leaves the
// graph unchanged.
func (g *Graph[M]) Register(m M) error {
	if g.sealed {
		return ErrGraphSealed
	}
	id := m.ID()
	if id == uuid.Nil {
		return ErrNilID
	}
	if _, ok := g.index[id]; ok {
		return &DuplicateIDError{ID: id}
	}

	deps := NewIDSet(m.Dependencies()...).Sorted()
	var (
		resolved []int
		missing  []uuid.UUID
	)
	for _, d := range deps {
		if d == id {
			return &CycleError{Cycle: []uuid.UUID{id}}
		}
		if idx, ok := g.index[d]; ok {
			resolved = append(resolved, idx)
		} else {
			missing = append(missing, d)
		}
	}

	// Earlier migrations waiting on this ID become its dependents, so a path
	// from any new dependency down to one of them closes a cycle.
	waiters := g.waiting[id]
	if len(waiters) > 0 && len(resolved) > 0 {
		if path := g.pathToAny(resolved, waiters); path != nil {
			cycle := make([]uuid.UUID, 0, len(path)+1)
			cycle = append(cycle, id)
			for _, idx := range path {
				cycle = append(cycle, g.nodes[idx].id)
			}
			return &CycleError{Cycle: cycle}
		}
	}

	idx := len(g.nodes)
	g.nodes = append(g.nodes, node[M]{m: m, id: id, deps: resolved, missing: missing})
	for _, r := range resolved {
		g.nodes[r].dependents = append(g.nodes[r].dependents, idx)
	}
	for _, w := range waiters {
		waiter := &g.nodes[w]
		waiter.deps = append(waiter.deps, idx)
		waiter.missing = slices.DeleteFunc(waiter.missing, func(x uuid.UUID) bool { return x == id })
		g.nodes[idx].dependents = append(g.nodes[idx].dependents, w)
	}
	delete(g.waiting, id)
	for _, mid := range missing {
		g.waiting[mid] = append(g.waiting[mid], idx)
	}
	g.index[id] = idx

	return nil
}

// pathToAny searches dependency edges breadth-first from starts and returns
// the first path (start first) that reaches one of targets, or nil.
func (g *Graph[M]) pathToAny(starts, targets []int) []int {
	isTarget := make(map[int]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}
	parent := make(map[int]int, len(g.nodes))
	queue := make([]int, 0, len(starts))
	for _, s := range starts {
		if _, seen := parent[s]; seen {
			continue
		}
		parent[s] = -1
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if isTarget[cur] {
			var path []int
			for at := cur; at != -1; at = parent[at] {
				path = append(path, at)
			}
			slices.Reverse(path)
			return path
		}
		for _, next := range g.nodes[cur].deps {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

// Validate checks that every dependency resolves to a registered migration.
// Cycles are rejected by Register, so a graph passing Validate is a DAG.
func (g *Graph[M]) Validate() error {
	for _, idx := range g.sortedIndices() {
		n := g.nodes[idx]
		if len(n.missing) == 0 {
			continue
		}
		missing := slices.Clone(n.missing)
		slices.SortFunc(missing, CompareIDs)
		return &UnresolvedDependencyError{ID: n.id, Missing: missing[0]}
	}
	return nil
}

// seal validates the graph, caches its topological order and rejects any
// further registration.
func (g *Graph[M]) seal() error {
	if g.sealed {
		return nil
	}
	if err := g.Validate(); err != nil {
		return err
	}
	g.order = g.topoOrder()
	g.rank = make([]int, len(g.nodes))
	for r, idx := range g.order {
		g.rank[idx] = r
	}
	g.sealed = true
	return nil
}

// Sealed reports whether the graph has been used for planning.
func (g *Graph[M]) Sealed() bool {
	return g.sealed
}

// Len returns the number of registered migrations.
func (g *Graph[M]) Len() int {
	return len(g.nodes)
}

// Has reports whether id is registered.
func (g *Graph[M]) Has(id uuid.UUID) bool {
	_, ok := g.index[id]
	return ok
}

// Migration returns the migration registered under id.
func (g *Graph[M]) Migration(id uuid.UUID) (M, bool) {
	idx, ok := g.index[id]
	if !ok {
		var zero M
		return zero, false
	}
	return g.nodes[idx].m, true
}

// Migrations returns all migrations in registration order.
func (g *Graph[M]) Migrations() []M {
	out := make([]M, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.m
	}
	return out
}

// DependenciesOf returns the registered direct dependencies of id: the
// migrations that must be applied before it.
func (g *Graph[M]) DependenciesOf(id uuid.UUID) ([]uuid.UUID, error) {
	idx, ok := g.index[id]
	if !ok {
		return nil, &UnknownMigrationError{ID: id}
	}
	return g.idsOf(g.nodes[idx].deps), nil
}

// DependentsOf returns the direct dependents of id: the migrations that must
// be applied after it.
func (g *Graph[M]) DependentsOf(id uuid.UUID) ([]uuid.UUID, error) {
	idx, ok := g.index[id]
	if !ok {
		return nil, &UnknownMigrationError{ID: id}
	}
	return g.idsOf(g.nodes[idx].dependents), nil
}

// AncestorsOf returns every migration id transitively depends on, excluding
// id itself.
func (g *Graph[M]) AncestorsOf(id uuid.UUID) ([]uuid.UUID, error) {
	idx, ok := g.index[id]
	if !ok {
		return nil, &UnknownMigrationError{ID: id}
	}
	return g.idsOfMask(g.closure(idx, Up), idx), nil
}

// DescendantsOf returns every migration transitively depending on id,
// excluding id itself.
func (g *Graph[M]) DescendantsOf(id uuid.UUID) ([]uuid.UUID, error) {
	idx, ok := g.index[id]
	if !ok {
		return nil, &UnknownMigrationError{ID: id}
	}
	return g.idsOfMask(g.closure(idx, Down), idx), nil
}

// Frontier returns the migrations nothing depends on. Applying all of them
// (and so their ancestors) means the store is fully migrated.
func (g *Graph[M]) Frontier() []uuid.UUID {
	var ids []uuid.UUID
	for _, n := range g.nodes {
		if len(n.dependents) == 0 {
			ids = append(ids, n.id)
		}
	}
	slices.SortFunc(ids, CompareIDs)
	return ids
}

// Roots returns the migrations without dependencies.
func (g *Graph[M]) Roots() []uuid.UUID {
	var ids []uuid.UUID
	for _, n := range g.nodes {
		if len(n.deps) == 0 && len(n.missing) == 0 {
			ids = append(ids, n.id)
		}
	}
	slices.SortFunc(ids, CompareIDs)
	return ids
}

// TopologicalOrder returns every migration ordered so that dependencies come
// before their dependents. Independent migrations are ordered by ID, which
// makes the result the lexicographically smallest valid order.
func (g *Graph[M]) TopologicalOrder() ([]M, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	order := g.order
	if !g.sealed {
		order = g.topoOrder()
	}
	out := make([]M, len(order))
	for i, idx := range order {
		out[i] = g.nodes[idx].m
	}
	return out, nil
}

// closure marks idx and everything reachable from it. Up follows dependency
// edges (ancestors), Down follows dependent edges (descendants).
func (g *Graph[M]) closure(idx int, dir Direction) []bool {
	seen := make([]bool, len(g.nodes))
	seen[idx] = true
	stack := []int{idx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		next := g.nodes[cur].deps
		if dir == Down {
			next = g.nodes[cur].dependents
		}
		for _, n := range next {
			if !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return seen
}

// topoOrder runs Kahn's algorithm, always emitting the smallest ready ID.
func (g *Graph[M]) topoOrder() []int {
	pending := make([]int, len(g.nodes))
	ready := &idHeap{nodes: g.idList()}
	for i, n := range g.nodes {
		pending[i] = len(n.deps)
		if pending[i] == 0 {
			ready.idx = append(ready.idx, i)
		}
	}
	heap.Init(ready)

	order := make([]int, 0, len(g.nodes))
	for ready.Len() > 0 {
		cur := heap.Pop(ready).(int)
		order = append(order, cur)
		for _, d := range g.nodes[cur].dependents {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return order
}

func (g *Graph[M]) idList() []uuid.UUID {
	ids := make([]uuid.UUID, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.id
	}
	return ids
}

func (g *Graph[M]) sortedIndices() []int {
	idx := make([]int, len(g.nodes))
	for i := range idx {
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int { return CompareIDs(g.nodes[a].id, g.nodes[b].id) })
	return idx
}

func (g *Graph[M]) idsOf(idx []int) []uuid.UUID {
	ids := make([]uuid.UUID, len(idx))
	for i, x := range idx {
		ids[i] = g.nodes[x].id
	}
	slices.SortFunc(ids, CompareIDs)
	return ids
}

func (g *Graph[M]) idsOfMask(mask []bool, skip int) []uuid.UUID {
	var ids []uuid.UUID
	for i, in := range mask {
		if in && i != skip {
			ids = append(ids, g.nodes[i].id)
		}
	}
	slices.SortFunc(ids, CompareIDs)
	return ids
}

// idHeap is a min-heap of node indices keyed by migration ID.
type idHeap struct {
	nodes []uuid.UUID
	idx   []int
}

func (h *idHeap) Len() int           { return len(h.idx) }
func (h *idHeap) Less(i, j int) bool { return CompareIDs(h.nodes[h.idx[i]], h.nodes[h.idx[j]]) < 0 }
func (h *idHeap) Swap(i, j int)      { h.idx[i], h.idx[j] = h.idx[j], h.idx[i] }
func (h *idHeap) Push(x any)         { h.idx = append(h.idx, x.(int)) }

func (h *idHeap) Pop() any {
	last := h.idx[len(h.idx)-1]
	h.idx = h.idx[:len(h.idx)-1]
	return last
}
