// Package leader implements the Leader control plane of spec.md §4.5: the
// single-writer owner of the dataflow graph, the active Recipe, the
// worker/domain registry, and the replication offsets, exposing the
// read/write operation surface external clients and the CDC Replicator
// drive.
//
// Grounded on cmd/coordinator/main.go's server struct (original teacher):
// a sync.RWMutex-guarded struct serializing every mutation, rather than a
// channel-based job queue — spec.md §5 asks only that no suspension point
// occur while an exclusive borrow on the graph is held, and migrations
// already satisfy that by staging on a clone before ever taking the lock
// for the in-memory swap.
package leader

import (
	"sync"

	"go.uber.org/zap"

	"github.com/flowmesh/dataflow/internal/authority"
	"github.com/flowmesh/dataflow/internal/channel"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/recipe"
	"github.com/flowmesh/dataflow/internal/replication"
)

// Leader owns every piece of process-local state spec.md §4.5 lists: the
// live graph, the active recipe, the worker registry, placement
// restrictions, replication offsets, and pending-recovery queries.
type Leader struct {
	log *zap.Logger

	mu sync.RWMutex

	g           *graph.Graph
	coordinator *channel.Coordinator
	nextDomain  graph.DomainIndex

	workers      map[string]migration.WorkerDescriptor
	domainOwners map[graph.DomainIndex]map[string]migration.WorkerDescriptor
	restrictions map[migration.RestrictionKey]string

	rec          *recipe.Recipe
	schemaOffset replication.Offset
	tableOffsets map[string]replication.Offset

	pendingRecovery  []string
	recoveryOriginal *recipe.Recipe
	quorumTarget     int

	authority authority.Authority
	rpc       RPC
}

// Config bundles Leader's construction-time dependencies.
type Config struct {
	Authority    authority.Authority
	RPC          RPC
	QuorumTarget int
	Log          *zap.Logger
}

// New starts a Leader with an empty graph and a blank recipe; resuming
// from a prior epoch goes through Bootstrap, which queues
// ControllerState.Recipes for replay once worker quorum is reached
// (spec.md §4.5: process-local state is always rebuildable from an
// Authority read).
func New(cfg Config) *Leader {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	quorum := cfg.QuorumTarget
	if quorum < 1 {
		quorum = 1
	}
	return &Leader{
		log:          log,
		g:            graph.New(),
		coordinator:  channel.New(),
		workers:      make(map[string]migration.WorkerDescriptor),
		domainOwners: make(map[graph.DomainIndex]map[string]migration.WorkerDescriptor),
		restrictions: make(map[migration.RestrictionKey]string),
		rec:          recipe.Blank(),
		tableOffsets: make(map[string]replication.Offset),
		quorumTarget: quorum,
		authority:    cfg.Authority,
		rpc:          cfg.RPC,
	}
}

// Coordinator exposes the Channel Coordinator for a Worker RPC server
// sharing this process (single-binary deployments).
func (l *Leader) Coordinator() *channel.Coordinator { return l.coordinator }

// resolveTable implements recipe.ResolveTable against g, the pattern
// recipe_test.go's resolveFromGraph also uses: scan for a live Base node
// by name.
func resolveTable(g *graph.Graph) recipe.ResolveTable {
	return func(name string) (graph.Index, []string, bool) {
		for _, n := range g.Nodes() {
			if n.Variant == graph.VariantBase && n.Name == name {
				return n.Index, append([]string(nil), n.Columns...), true
			}
		}
		return 0, nil, false
	}
}

// Inputs lists every Base table's node index by name (spec.md §4.5
// inputs()).
func (l *Leader) Inputs() map[string]graph.Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]graph.Index)
	for _, n := range l.g.Nodes() {
		if n.Variant == graph.VariantBase {
			out[n.Name] = n.Index
		}
	}
	return out
}

// Outputs lists every Reader's node index by query name (spec.md §4.5
// outputs()).
func (l *Leader) Outputs() map[string]graph.Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]graph.Index)
	for name, idx := range l.rec.Aliases() {
		if n, ok := l.g.Node(idx); ok && n.Variant == graph.VariantReader {
			out[name] = idx
		}
	}
	return out
}

// TableBuilder resolves name to the descriptor adapters need to write
// directly to its shards (spec.md §4.5 table_builder(name)).
func (l *Leader) TableBuilder(name string) (TableBuilder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.rec.Alias(name)
	if !ok {
		return TableBuilder{}, errTableNotFound(name)
	}
	n, ok := l.g.Node(idx)
	if !ok || n.Variant != graph.VariantBase {
		return TableBuilder{}, errTableNotFound(name)
	}
	return TableBuilder{
		Node:       idx,
		Columns:    append([]string(nil), n.Columns...),
		KeyColumns: nil,
		Dropped:    append([]int(nil), n.Dropped...),
		ShardAddrs: l.coordinator.Shards(n.Domain, shardCount(n)),
	}, nil
}

// ViewBuilder resolves req.Name to every reader replica currently serving
// it (spec.md §4.5 view_builder(req)).
func (l *Leader) ViewBuilder(req ViewRequest) ([]ViewReplica, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.rec.Alias(req.Name)
	if !ok {
		return nil, errViewNotFound(req.Name)
	}
	n, ok := l.g.Node(idx)
	if !ok || n.Variant != graph.VariantReader {
		return nil, errViewNotFound(req.Name)
	}

	addrs := l.coordinator.Shards(n.Domain, shardCount(n))
	if req.WorkerFilter != "" {
		addrs = filterAddrs(addrs, req.WorkerFilter)
		if len(addrs) == 0 {
			return nil, errViewNotFound(req.Name)
		}
	}
	return []ViewReplica{{
		Domain:     n.Domain,
		Columns:    append([]string(nil), n.Columns...),
		Schema:     append([]string(nil), n.Columns...),
		KeyColumns: append([]int(nil), n.ReaderKey...),
		ShardAddrs: addrs,
	}}, nil
}

func filterAddrs(addrs []string, want string) []string {
	out := addrs[:0]
	for _, a := range addrs {
		if a == want {
			out = append(out, a)
		}
	}
	return out
}

func shardCount(n *graph.Node) int {
	if n.Sharding.ByCol && n.Sharding.N > 0 {
		return n.Sharding.N
	}
	return 1
}

// GetInfo returns every node's identity and placement (spec.md §4.5
// get_statistics's companion introspection call, and §6's GET /get_info).
func (l *Leader) GetInfo() GraphInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info := GraphInfo{}
	for _, n := range l.g.Nodes() {
		info.Nodes = append(info.Nodes, NodeInfo{
			Index:       n.Index,
			Name:        n.Name,
			Description: n.Variant.String(),
			Domain:      n.Domain,
		})
	}
	return info
}

// Workers lists every registered worker (spec.md §6 GET /workers).
func (l *Leader) Workers() []WorkerInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]WorkerInfo, 0, len(l.workers))
	for _, w := range l.workers {
		out = append(out, WorkerInfo{ID: w.ID, URI: w.URI, Region: w.Region, Healthy: w.Healthy})
	}
	return out
}

// HealthyWorkers is Workers filtered to Healthy == true (spec.md §6 GET
// /healthy_workers).
func (l *Leader) HealthyWorkers() []WorkerInfo {
	all := l.Workers()
	out := all[:0]
	for _, w := range all {
		if w.Healthy {
			out = append(out, w)
		}
	}
	return out
}

// ReplicationOffset returns the minimum offset across every base table,
// or nil if any base has never been written (spec.md §4.5
// replication_offset(): "min across all base-table offsets, or None if
// any base has no offset").
func (l *Leader) ReplicationOffset() *replication.Offset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.replicationOffsetLocked()
}

func (l *Leader) replicationOffsetLocked() *replication.Offset {
	var min *replication.Offset
	for _, n := range l.g.Nodes() {
		if n.Variant != graph.VariantBase {
			continue
		}
		off, ok := l.tableOffsets[n.Name]
		if !ok || off.IsZero() {
			return nil
		}
		if min == nil || off.Compare(*min) < 0 {
			o := off
			min = &o
		}
	}
	return min
}

