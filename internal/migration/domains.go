package migration

import "github.com/flowmesh/dataflow/internal/graph"

// AssignDomains groups every node added during this migration into
// domains (spec.md §4.4 step 1: "New nodes without a domain are grouped
// with their parents following the sharding mode ... Reader nodes are
// isolated into their own domain"). Returns the assignment and the next
// free domain index.
func (m *Migration) AssignDomains(next graph.DomainIndex) (map[graph.Index]graph.DomainIndex, graph.DomainIndex) {
	assign := make(map[graph.Index]graph.DomainIndex, len(m.added))

	for _, idx := range m.added {
		n := m.g.MustNode(idx)
		if n.Domain != graph.NoDomain {
			assign[idx] = n.Domain
			continue
		}
		if n.Variant == graph.VariantReader {
			assign[idx] = next
			next++
			continue
		}

		domain, found := graph.NoDomain, false
		for _, p := range n.Parents {
			pn := m.g.MustNode(p)
			if pn.Variant == graph.VariantReader {
				continue
			}
			if d, ok := assign[p]; ok {
				domain, found = d, true
				break
			}
			if pn.Domain != graph.NoDomain {
				domain, found = pn.Domain, true
				break
			}
		}
		if !found {
			domain = next
			next++
		}
		assign[idx] = domain
	}
	return assign, next
}

// domainPlans summarizes assign into the per-domain shard count and
// placement-relevant flags PlaceDomains needs (spec.md §4.4 step 1's
// grouping feeding directly into step 3's placement).
func (m *Migration) domainPlans(assign map[graph.Index]graph.DomainIndex) []DomainPlan {
	byDomain := make(map[graph.DomainIndex]*DomainPlan)
	var order []graph.DomainIndex

	for _, idx := range m.added {
		d := assign[idx]
		n := m.g.MustNode(idx)
		dp, ok := byDomain[d]
		if !ok {
			dp = &DomainPlan{Domain: d, NShards: 1}
			byDomain[d] = dp
			order = append(order, d)
		}
		switch n.Variant {
		case graph.VariantReader:
			dp.IsReader = true
		case graph.VariantBase:
			dp.BaseTable = n.Name
		}
		if n.Sharding.ByCol && n.Sharding.N > dp.NShards {
			dp.NShards = n.Sharding.N
		}
	}

	out := make([]DomainPlan, 0, len(order))
	for _, d := range order {
		out = append(out, *byDomain[d])
	}
	return out
}
