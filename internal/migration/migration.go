// Package migration implements the Migration builder of spec.md §4.4: a
// transient, Leader-owned staging area for one graph edit — new nodes are
// added against a clone of the live graph, then committed through the
// six-step protocol (assign domains, plan materialization, place domains,
// boot domains, gossip, finalize) spec.md names, rolling back to the
// prior recipe on any failure.
//
// Grounded on noria/server/src/controller/inner.rs's migrate/commit flow
// (original_source): Migration here plays the role of noria's `Migration`
// builder passed into `Recipe::activate`, narrowed to the subset of state
// a Go value type can hold without the borrow-checker discipline the
// original leans on.
package migration

import (
	"time"

	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/materialize"
)

// Migration holds a cloned graph, the set of nodes added during this
// call, and the Reader each new stateful subtree terminates in (spec.md
// §4.4: "Holds: cloned graph, source id, sets added: Set<NodeIndex> and
// readers: Map<owner->reader>, per-column context, optional pinned
// worker, start timestamp").
type Migration struct {
	g            *graph.Graph
	added        []graph.Index
	addedSet     map[graph.Index]bool
	readers      map[graph.Index]graph.Index
	pinnedWorker string
	start        time.Time
}

// New stages a migration against g. Callers clone the Leader's live graph
// before calling this (spec.md §5: "migrations therefore stage mutations
// on a clone of the graph"); Migration itself does not clone, since the
// Leader's clone point also has to account for the single-writer
// discipline of its own event loop.
func New(g *graph.Graph) *Migration {
	return &Migration{
		g:        g,
		addedSet: make(map[graph.Index]bool),
		readers:  make(map[graph.Index]graph.Index),
		start:    time.Now(),
	}
}

func (m *Migration) Graph() *graph.Graph { return m.g }

// Added returns every node index created during this migration, in
// insertion order.
func (m *Migration) Added() []graph.Index { return append([]graph.Index(nil), m.added...) }

func (m *Migration) track(n *graph.Node) graph.Index {
	m.added = append(m.added, n.Index)
	m.addedSet[n.Index] = true
	return n.Index
}

// AddBase inserts a Base node as a direct child of Source.
func (m *Migration) AddBase(name string, columns []string, sharding graph.ShardingMode) (graph.Index, error) {
	n, err := m.g.AddBase(name, columns, sharding)
	if err != nil {
		return 0, err
	}
	return m.track(n), nil
}

// AddInternal inserts an operator node.
func (m *Migration) AddInternal(name string, columns []string, op graph.Op, parents []graph.Index, sharding graph.ShardingMode) (graph.Index, error) {
	n, err := m.g.AddInternal(name, columns, op, parents, sharding)
	if err != nil {
		return 0, err
	}
	return m.track(n), nil
}

// AddReader inserts a Reader node and records it as parent's terminal
// reader (the "owner->reader" map spec.md §4.4 names).
func (m *Migration) AddReader(name string, parent graph.Index, keyCols []int) (graph.Index, error) {
	n, err := m.g.AddReader(name, parent, keyCols)
	if err != nil {
		return 0, err
	}
	m.readers[parent] = n.Index
	return m.track(n), nil
}

// ReaderFor returns the Reader terminating owner's subtree, if one was
// added during this migration.
func (m *Migration) ReaderFor(owner graph.Index) (graph.Index, bool) {
	r, ok := m.readers[owner]
	return r, ok
}

// PinWorker restricts every new domain in this migration to a single
// worker URI (spec.md §4.4: "optional pinned worker"), used by
// Leader.ReplicateReaders when the request names a target worker.
func (m *Migration) PinWorker(uri string) { m.pinnedWorker = uri }

func (m *Migration) PinnedWorker() string { return m.pinnedWorker }

// Plan runs the Materializations Planner over every node added so far
// (spec.md §4.4 step 2).
func (m *Migration) Plan() (*materialize.Plan, error) {
	return materialize.Build(m.g, m.added)
}
