// Package materialize implements the Materializations Planner of spec.md
// §2 item 5: deciding which operator indices are fully materialized versus
// partially materialized with upquery paths, and validating that partial
// keys are actually reachable.
//
// Grounded on noria/noria-server/src/controller/migrate/materialization.rs
// (original_source) for the full-vs-partial decision and upquery-path
// walk; expressed here against internal/graph's Node/Graph rather than
// noria's petgraph-backed MIR.
package materialize

import (
	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
)

// Kind is the materialization decision for one node.
type Kind int

const (
	NotMaterialized Kind = iota
	Full
	Partial
)

// Plan is the per-node materialization decision plus each partial node's
// upquery path (the stateful ancestors a miss must pull through).
type Plan struct {
	Kind       map[graph.Index]Kind
	UpqueryPath map[graph.Index][]graph.Index
}

// Build decides materialization for every new node in nodes, walking from
// each Reader down to its stateful ancestors.
func Build(g *graph.Graph, nodes []graph.Index) (*Plan, error) {
	p := &Plan{Kind: make(map[graph.Index]Kind), UpqueryPath: make(map[graph.Index][]graph.Index)}

	for _, idx := range nodes {
		n := g.MustNode(idx)
		switch n.Variant {
		case graph.VariantReader:
			// Readers are always materialized (they are the cache adapters
			// read from); default to partial unless the query forces full
			// (bogokey/no-parameter queries materialize fully since every
			// row must be visible without a key).
			kind := Partial
			if n.ReaderKey == nil || len(n.ReaderKey) == 0 {
				kind = Full
			}
			p.Kind[idx] = kind
			if kind == Partial {
				path, err := upqueryPath(g, idx, p)
				if err != nil {
					return nil, err
				}
				p.UpqueryPath[idx] = path
			}

		case graph.VariantBase:
			p.Kind[idx] = Full

		case graph.VariantInternal:
			// An internal node materializes only if some descendant reader
			// is partial and this node sits on its upquery path; default to
			// not-materialized (pass-through), upgraded below once readers
			// are walked.
			if _, ok := p.Kind[idx]; !ok {
				p.Kind[idx] = NotMaterialized
			}

		default:
			p.Kind[idx] = NotMaterialized
		}
	}

	// Promote every node on a partial reader's upquery path to Partial so
	// it knows to serve upqueries instead of just forwarding.
	for _, path := range p.UpqueryPath {
		for _, idx := range path {
			if p.Kind[idx] == NotMaterialized {
				p.Kind[idx] = Partial
			}
		}
	}

	return p, nil
}

// upqueryPath walks from a Reader up through its first-parent ancestors,
// stopping at the first Base node (or a node with no parents),
// validating that the reader's key is reachable (spec.md §4.4 step 2:
// "validate that partial keys are reachable (no 'pull through full join
// without matching key')").
func upqueryPath(g *graph.Graph, reader graph.Index, p *Plan) ([]graph.Index, error) {
	var path []graph.Index
	cur := reader
	for {
		n := g.MustNode(cur)
		if len(n.Parents) == 0 {
			break
		}
		if len(n.Parents) > 1 && p.Kind[cur] != Full {
			// Per-branch key mappings through a join are not derived, so a
			// multi-parent node on the path must be fully materialized;
			// otherwise the partial key is rejected (see DESIGN.md
			// open-question note).
			return nil, ferr.New(ferr.KindUnsupported, "partial key not reachable through join without matching key")
		}
		parent := n.Parents[0]
		path = append(path, parent)
		pn := g.MustNode(parent)
		if pn.Variant == graph.VariantBase {
			break
		}
		cur = parent
	}
	return path, nil
}
