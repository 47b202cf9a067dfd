package migration

import (
	"context"

	"github.com/flowmesh/dataflow/internal/channel"
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
)

// RunDomainBody is the payload Commit hands to RunDomain; it mirrors
// worker.RunDomainRequest without importing internal/worker, which would
// pull value/ops into a package recipe.Activate (and therefore the
// QG Builder/parser path) does not need.
type RunDomainBody struct {
	Domain  graph.DomainIndex
	Shard   int
	NShards int
	Nodes   []graph.Index
}

// DomainDescriptor is gossiped to every worker after booting new domains
// so they can establish direct peer links (spec.md §4.4 step 5).
type DomainDescriptor struct {
	Domain  graph.DomainIndex
	NShards int
	Shards  []string // address per shard, in shard order
}

// RunDomainFunc performs the RunDomain RPC against one worker and
// returns its externally reachable address (spec.md §4.4 step 4).
type RunDomainFunc func(ctx context.Context, worker WorkerDescriptor, body RunDomainBody) (string, error)

// GossipFunc broadcasts descriptors to every live worker (spec.md §4.4
// step 5).
type GossipFunc func(ctx context.Context, descriptors []DomainDescriptor) error

// Deps bundles the Leader-owned collaborators Commit needs: the worker
// registry, placement-restriction table, channel coordinator, and the
// RunDomain/Gossip/RemoveNodes RPC kinds.
type Deps struct {
	Workers      []WorkerDescriptor
	Restrictions map[RestrictionKey]string
	Coordinator  *channel.Coordinator
	NextDomain   graph.DomainIndex
	RunDomain    RunDomainFunc
	Gossip       GossipFunc
	RemoveNodes  RemoveNodesFunc
}

// Result is what Commit reports back to Recipe.activate / the Leader
// (spec.md §4.3's ActivationResult{new_nodes, removed_leaves}, extended
// with the next free domain index the Leader must remember across
// migrations).
type Result struct {
	NewNodes   []graph.Index
	NextDomain graph.DomainIndex
}

// Commit runs commit-protocol steps 1-5 (spec.md §4.4): assign domains,
// plan materialization, place domains, boot domains, gossip. Step 6
// (finalize orphan removal) is RemoveLeaves, run separately once the
// caller knows which aliases the new recipe dropped.
func (m *Migration) Commit(ctx context.Context, deps Deps) (*Result, error) {
	if len(m.added) == 0 {
		return &Result{NextDomain: deps.NextDomain}, nil
	}

	assign, next := m.AssignDomains(deps.NextDomain)

	localCounters := make(map[graph.DomainIndex]int)
	for _, n := range m.g.Nodes() {
		if n.Domain != graph.NoDomain && int(n.Local)+1 > localCounters[n.Domain] {
			localCounters[n.Domain] = int(n.Local) + 1
		}
	}
	for _, idx := range m.added {
		n := m.g.MustNode(idx)
		if n.Domain != graph.NoDomain {
			continue
		}
		d := assign[idx]
		local := localCounters[d]
		localCounters[d]++
		if err := m.g.Place(idx, d, graph.LocalAddr(local)); err != nil {
			return nil, err
		}
	}

	// Materialization planning (step 2) validates partial-key
	// reachability; its Kind/UpqueryPath decisions feed the worker's
	// persistence configuration in a fuller implementation than this
	// in-memory worker carries (basetable.go's doc comment), so the
	// result is consulted only for its error here.
	if _, err := m.Plan(); err != nil {
		return nil, err
	}

	plans := m.domainPlans(assign)
	placements, err := PlaceDomains(plans, deps.Restrictions, deps.Workers, m.pinnedWorker)
	if err != nil {
		return nil, err
	}

	nodesByDomain := make(map[graph.DomainIndex][]graph.Index)
	for _, idx := range m.added {
		d := assign[idx]
		nodesByDomain[d] = append(nodesByDomain[d], idx)
	}
	nshards := make(map[graph.DomainIndex]int)
	for _, p := range placements {
		if p.Shard+1 > nshards[p.Domain] {
			nshards[p.Domain] = p.Shard + 1
		}
	}

	shardsByDomain := make(map[graph.DomainIndex][]string)
	var booted []Placement
	for _, p := range placements {
		addr, err := deps.RunDomain(ctx, p.Worker, RunDomainBody{
			Domain: p.Domain, Shard: p.Shard, NShards: nshards[p.Domain], Nodes: nodesByDomain[p.Domain],
		})
		if err != nil {
			// spec.md §4.4: "nodes added in this migration but already
			// booted are removed by sending RemoveNodes on a best-effort
			// basis" — errors from the cleanup sweep itself are swallowed,
			// since the caller already has the original failure to report
			// and a best-effort cleanup cannot itself fail the migration.
			for _, b := range booted {
				_ = deps.RemoveNodes(ctx, b.Worker, b.Domain, nodesByDomain[b.Domain])
			}
			return nil, ferr.Wrap(ferr.KindDomainCreationFailed, "booting domain", err)
		}
		booted = append(booted, p)
		deps.Coordinator.Put(p.Domain, p.Shard, addr)
		shards, ok := shardsByDomain[p.Domain]
		if !ok || len(shards) <= p.Shard {
			padded := make([]string, p.Shard+1)
			copy(padded, shards)
			shards = padded
		}
		shards[p.Shard] = addr
		shardsByDomain[p.Domain] = shards
	}

	var descriptors []DomainDescriptor
	for d, shards := range shardsByDomain {
		descriptors = append(descriptors, DomainDescriptor{Domain: d, NShards: nshards[d], Shards: shards})
	}
	if deps.Gossip != nil {
		if err := deps.Gossip(ctx, descriptors); err != nil {
			return nil, err
		}
	}

	return &Result{NewNodes: m.Added(), NextDomain: next}, nil
}
