package recipe

import (
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/querygraph"
)

// ActivationResult reports what Activate changed in the graph (spec.md
// §4.3: "activate(migration) -> ActivationResult { new_nodes,
// removed_leaves }").
type ActivationResult struct {
	NewNodes      []graph.Index
	RemovedLeaves []graph.Index
}

// Activate lowers r's statements into operator nodes against m (spec.md
// §4.3). Statements already resolved to an alias (carried over from a
// prior recipe by Extend/RemoveQuery's clone) are skipped; Replace starts
// every statement unaliased, so a full install always relowers from
// scratch (an open question spec.md §8 leaves to the implementer: this
// chooses to force a re-snapshot of same-named bases rather than
// state-copy them, the simpler and more conservative of the two options —
// see DESIGN.md).
//
// resolve looks up an already-installed base table's node index and
// column schema by name; it is consulted both for tables this recipe
// itself just added (via r.Alias) and for tables installed by an earlier
// recipe version still live in the graph.
func Activate(r *Recipe, m *migration.Migration, resolve ResolveTable) (ActivationResult, error) {
	var result ActivationResult

	lookup := func(name string) (graph.Index, []string, bool) {
		if idx, ok := r.Alias(name); ok {
			if n, ok := m.Graph().Node(idx); ok {
				return idx, unqualify(n.Columns), true
			}
		}
		return resolve(name)
	}

	for _, stmt := range r.Statements() {
		if _, already := r.Alias(stmt.Name); already {
			continue
		}

		switch stmt.Kind {
		case KindTable:
			idx, err := m.AddBase(stmt.Name, stmt.Columns, graph.NotSharded())
			if err != nil {
				return result, err
			}
			r.aliases[stmt.Name] = idx
			result.NewNodes = append(result.NewNodes, idx)

		case KindCache:
			qg, err := querygraph.BuildSelect(stmt.Select)
			if err != nil {
				return result, err
			}
			leaf, newNodes, err := lower(qg, m, lookup)
			if err != nil {
				return result, err
			}
			keyCols := viewKeyColumns(qg, leaf.schema)
			readerIdx, err := m.AddReader(stmt.Name, leaf.idx, keyCols)
			if err != nil {
				return result, err
			}
			r.aliases[stmt.Name] = readerIdx
			result.NewNodes = append(result.NewNodes, append(newNodes, readerIdx)...)
		}
	}

	if r.prior != nil {
		for name, idx := range r.prior.aliases {
			if _, stillThere := r.aliases[name]; !stillThere {
				result.RemovedLeaves = append(result.RemovedLeaves, idx)
			}
		}
	}

	return result, nil
}

// unqualify strips a node's "relation.column"-qualified schema (lower's
// convention) back down to bare column names, for re-resolving a base
// table this same recipe already added.
func unqualify(schema []string) []string {
	out := make([]string, len(schema))
	for i, s := range schema {
		out[i] = s
		for j := len(s) - 1; j >= 0; j-- {
			if s[j] == '.' {
				out[i] = s[j+1:]
				break
			}
		}
	}
	return out
}
