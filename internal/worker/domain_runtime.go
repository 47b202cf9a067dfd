package worker

import (
	"sync"

	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/ops"
	"github.com/flowmesh/dataflow/internal/value"
)

// DomainRuntime is the single-threaded cooperative scheduler for one
// domain's shard, spec.md §2 item 4 / §5 layer 2: "each domain runs on a
// dedicated single-threaded cooperative loop owned by one worker process.
// Operator node computation within a domain is synchronous; there is no
// locking between operators in the same domain."
//
// Grounded on johnjansen-torua/internal/shard.Shard: a node owns its
// storage and stats directly, with no cross-node locking, generalized
// from a single key-value Shard to a graph of operator nodes processed in
// topological (parent-before-child) order on delivery of a Packet.
type DomainRuntime struct {
	Idx        graph.DomainIndex
	Shard      int
	NShards    int
	g          *graph.Graph
	bases      map[graph.Index]*BaseTable
	readers    map[graph.Index]*ReaderCache
	packets    chan Packet
	done       chan struct{}
	mu         sync.Mutex // guards incremental Node-set append (invariant v)
	nodeSet    map[graph.Index]bool
}

// PacketKind distinguishes the delta flowing through the domain.
type PacketKind byte

const (
	PacketInsert PacketKind = iota
	PacketDelete
)

// Packet is one unit of work the domain's loop processes; generalizes
// "row delta arriving at a node" across both base-table writes (from the
// replicator, via worker.ApplyTableOperation) and internal operator
// output forwarded from an upstream domain over Ingress/Egress.
type Packet struct {
	Kind PacketKind
	Node graph.Index
	Row  value.Row
}

// NewDomainRuntime constructs the runtime for one domain shard, with a
// bases/readers map covering every Base/Reader node placed in g that
// belongs to this domain+shard.
func NewDomainRuntime(idx graph.DomainIndex, shard, nshards int, g *graph.Graph) *DomainRuntime {
	d := &DomainRuntime{
		Idx: idx, Shard: shard, NShards: nshards, g: g,
		bases:   make(map[graph.Index]*BaseTable),
		readers: make(map[graph.Index]*ReaderCache),
		packets: make(chan Packet, 1024),
		done:    make(chan struct{}),
		nodeSet: make(map[graph.Index]bool),
	}
	for _, n := range g.Nodes() {
		if n.Domain != idx {
			continue
		}
		d.nodeSet[n.Index] = true
		switch n.Variant {
		case graph.VariantBase:
			d.bases[n.Index] = NewBaseTable(n.Name, n.ReaderKey)
		case graph.VariantReader:
			d.readers[n.Index] = NewReaderCache(true)
		}
	}
	return d
}

// AddNodes appends newly-placed nodes to this domain's node set, the
// append-only rule of invariant v ("A domain's node set is append-only
// within one migration").
func (d *DomainRuntime) AddNodes(nodes []graph.Index) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, idx := range nodes {
		d.nodeSet[idx] = true
		n, ok := d.g.Node(idx)
		if !ok {
			continue
		}
		switch n.Variant {
		case graph.VariantBase:
			if _, exists := d.bases[idx]; !exists {
				d.bases[idx] = NewBaseTable(n.Name, n.ReaderKey)
			}
		case graph.VariantReader:
			if _, exists := d.readers[idx]; !exists {
				d.readers[idx] = NewReaderCache(true)
			}
		}
	}
}

// RemoveNodes drops nodes from this domain, used by migration's
// finalize step for orphaned leaves (spec.md §4.4 step 6).
func (d *DomainRuntime) RemoveNodes(nodes []graph.Index) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, idx := range nodes {
		delete(d.nodeSet, idx)
		delete(d.bases, idx)
		delete(d.readers, idx)
	}
}

// Base returns the BaseTable for idx, if this domain hosts it.
func (d *DomainRuntime) Base(idx graph.Index) (*BaseTable, bool) {
	b, ok := d.bases[idx]
	return b, ok
}

// Reader returns the ReaderCache for idx, if this domain hosts it.
func (d *DomainRuntime) Reader(idx graph.Index) (*ReaderCache, bool) {
	r, ok := d.readers[idx]
	return r, ok
}

// Start runs the cooperative loop until Stop is called; every packet is
// processed to completion before the next is dequeued, giving the
// single-threaded semantics spec.md §5 requires.
func (d *DomainRuntime) Start() {
	for {
		select {
		case pkt := <-d.packets:
			d.process(pkt)
		case <-d.done:
			return
		}
	}
}

func (d *DomainRuntime) Stop() { close(d.done) }

// Deliver enqueues a packet for processing; safe to call from any
// goroutine (e.g. the worker's RPC handler), the loop itself stays
// single-threaded.
func (d *DomainRuntime) Deliver(pkt Packet) {
	d.packets <- pkt
}

// process evaluates pkt against the node it targets and recurses into
// children, applying the ops package's operator semantics. Join/Aggregate
// state beyond a node's direct output is intentionally out of scope here
// (full incremental-view-maintenance state machines are a worker
// execution-engine concern spec.md's Non-goals keep at arm's length); this
// implements the single-hop propagation needed to keep Reader caches and
// downstream Base-derived views correct for filter/project/union; a
// Join, Aggregate or TopK node forwards the incoming row to its children
// unchanged.
func (d *DomainRuntime) process(pkt Packet) {
	n, ok := d.g.Node(pkt.Node)
	if !ok {
		return
	}

	switch n.Variant {
	case graph.VariantReader:
		cache, ok := d.readers[n.Index]
		if !ok {
			return
		}
		key := pkt.Row.Key(n.ReaderKey)
		existing, _ := cache.Lookup(key)
		switch pkt.Kind {
		case PacketInsert:
			cache.Fill(key, append(existing, pkt.Row))
		case PacketDelete:
			cache.Fill(key, removeRow(existing, pkt.Row))
		}
		return
	case graph.VariantInternal:
		out, emit := d.evalOp(n, pkt)
		if !emit {
			return
		}
		for _, child := range n.Children {
			d.process(Packet{Kind: pkt.Kind, Node: child, Row: out})
		}
	default:
		for _, child := range n.Children {
			d.process(Packet{Kind: pkt.Kind, Node: child, Row: pkt.Row})
		}
	}
}

func (d *DomainRuntime) evalOp(n *graph.Node, pkt Packet) (value.Row, bool) {
	switch op := n.Op.(type) {
	case *ops.Filter:
		return pkt.Row, op.Apply(pkt.Row)
	case *ops.Project:
		return op.Apply(pkt.Row), true
	case *ops.Union:
		return pkt.Row, true
	default:
		return pkt.Row, true
	}
}

func removeRow(rows []value.Row, target value.Row) []value.Row {
	out := rows[:0]
	for _, r := range rows {
		if !r.Equal(target) {
			out = append(out, r)
		}
	}
	return out
}
