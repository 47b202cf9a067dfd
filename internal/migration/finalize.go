package migration

import (
	"context"

	"github.com/flowmesh/dataflow/internal/graph"
)

// RemoveNodesFunc performs the RemoveNodes RPC against one worker hosting
// domain (spec.md §4.5's RemoveNodes{nodes} RPC kind).
type RemoveNodesFunc func(ctx context.Context, worker WorkerDescriptor, domain graph.DomainIndex, nodes []graph.Index) error

// DomainWorkersFunc returns every worker currently hosting a shard of
// domain, so RemoveLeaves can reach all of them.
type DomainWorkersFunc func(domain graph.DomainIndex) []WorkerDescriptor

// RemoveLeaves implements commit-protocol step 6 (spec.md §4.4 step 6):
// "For each removed leaf, walk orphan ancestors up to the first shared
// predecessor and submit RemoveNodes to each affected domain." A node is
// an orphan once every one of its children has itself been removed; the
// walk stops at the first ancestor that still has a live child. The Source
// node is never removed, and a Base node only when it is itself one of
// leaves.
func RemoveLeaves(ctx context.Context, g *graph.Graph, leaves []graph.Index, domainWorkers DomainWorkersFunc, removeNodes RemoveNodesFunc) ([]graph.Index, error) {
	removed := make(map[graph.Index]bool)
	var order []graph.Index

	var walk func(graph.Index, bool)
	walk = func(idx graph.Index, leaf bool) {
		n, ok := g.Node(idx)
		if !ok || removed[idx] {
			return
		}
		if n.Variant == graph.VariantSource || (n.Variant == graph.VariantBase && !leaf) {
			return
		}
		for _, c := range n.Children {
			if !removed[c] {
				return
			}
		}
		removed[idx] = true
		order = append(order, idx)
		for _, p := range n.Parents {
			walk(p, false)
		}
	}
	for _, leaf := range leaves {
		walk(leaf, true)
	}

	byDomain := make(map[graph.DomainIndex][]graph.Index)
	for _, idx := range order {
		n := g.MustNode(idx)
		byDomain[n.Domain] = append(byDomain[n.Domain], idx)
	}
	for domain, nodes := range byDomain {
		for _, w := range domainWorkers(domain) {
			if err := removeNodes(ctx, w, domain, nodes); err != nil {
				return nil, err
			}
		}
	}

	for _, idx := range order {
		if err := g.Remove(idx); err != nil {
			return nil, err
		}
	}
	return order, nil
}
