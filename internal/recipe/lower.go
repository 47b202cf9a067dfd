package recipe

import (
	"strconv"
	"strings"

	"github.com/flowmesh/dataflow/internal/ferr"
	"github.com/flowmesh/dataflow/internal/graph"
	"github.com/flowmesh/dataflow/internal/migration"
	"github.com/flowmesh/dataflow/internal/ops"
	"github.com/flowmesh/dataflow/internal/querygraph"
	"github.com/flowmesh/dataflow/internal/value"
)

// ResolveTable looks up a base table's graph index and declared column
// order by name (schema lookup the Leader's recipe state already owns);
// Activate takes this as a function so recipe stays free of a dependency
// on however the caller indexes existing aliases.
type ResolveTable func(name string) (idx graph.Index, columns []string, ok bool)

// loweredLeaf is one relation subtree's current terminal node: its graph
// index and the relation-qualified column schema of its output row.
type loweredLeaf struct {
	idx    graph.Index
	schema []string // "relation.column", aligned with the node's row layout
}

// lower builds the filter/join operator chain for one cached query's
// QueryGraph (spec.md §4.2/§4.3's "lowers added queries into operator
// nodes"). It stops short of projecting down to the SELECT's output
// columns: a Reader caches the full row reaching it, the way spec.md's
// glossary describes a Reader ("keyed by the query's parameter columns"),
// and final column selection is left to the client-facing adapter
// (explicitly out of scope per spec.md §1).
//
// Supports at most two relations joined by a single equi-predicate edge;
// aggregate output columns are not yet lowered into an Aggregate node
// (tracked in DESIGN.md).
func lower(qg *querygraph.QueryGraph, m *migration.Migration, resolve ResolveTable) (loweredLeaf, []graph.Index, error) {
	if len(qg.Relations) == 0 {
		return loweredLeaf{}, nil, ferr.New(ferr.KindUnsupported, "cached query has no relations")
	}
	if len(qg.Relations) > 2 {
		return loweredLeaf{}, nil, ferr.New(ferr.KindUnsupported, "cached queries over more than two relations are not yet supported")
	}

	var newNodes []graph.Index
	leaves := make(map[string]loweredLeaf, len(qg.Relations))

	for _, rel := range qg.Relations {
		idx, cols, ok := resolve(rel)
		if !ok {
			return loweredLeaf{}, nil, ferr.Newf(ferr.KindTableNotFound, "unknown relation %q", rel)
		}
		cur := loweredLeaf{idx: idx, schema: qualify(rel, cols)}

		for _, lp := range qg.LocalPredicates {
			if lp.Relation != rel {
				continue
			}
			col := indexOf(cur.schema, rel, lp.Column)
			if col < 0 {
				return loweredLeaf{}, nil, ferr.Newf(ferr.KindNoSuchColumn, "no such column %s.%s", lp.Relation, lp.Column)
			}
			op, err := filterOp(col, lp.Op, lp.Literal)
			if err != nil {
				return loweredLeaf{}, nil, err
			}
			fidx, err := m.AddInternal(rel+"_filter", cur.schema, op, []graph.Index{cur.idx}, graph.NotSharded())
			if err != nil {
				return loweredLeaf{}, nil, err
			}
			newNodes = append(newNodes, fidx)
			cur = loweredLeaf{idx: fidx, schema: cur.schema}
		}
		leaves[rel] = cur
	}

	leaf := leaves[qg.Relations[0]]
	for _, edge := range qg.Edges {
		if edge.Kind != querygraph.EdgeJoin && edge.Kind != querygraph.EdgeLeftJoin {
			continue
		}
		left, lok := leaves[edge.A]
		right, rok := leaves[edge.B]
		if !lok || !rok {
			continue
		}

		on := make([]ops.EquiPair, 0, len(edge.OnCols))
		for _, p := range edge.OnCols {
			lc := indexOf(left.schema, p.Left.Relation, p.Left.Column)
			rc := indexOf(right.schema, p.Right.Relation, p.Right.Column)
			if lc < 0 || rc < 0 {
				return loweredLeaf{}, nil, ferr.New(ferr.KindUnsupported, "join predicate references an unresolved column")
			}
			on = append(on, ops.EquiPair{LeftCol: lc, RightCol: rc})
		}

		kind := ops.JoinInner
		if edge.Kind == querygraph.EdgeLeftJoin {
			kind = ops.JoinLeft
		}
		schema := append(append([]string(nil), left.schema...), right.schema...)
		joinOp := &ops.Join{
			Kind: kind, Left: 0, Right: 1, On: on,
			LeftWidth: len(left.schema), RightWidth: len(right.schema),
		}
		jidx, err := m.AddInternal("join", schema, joinOp, []graph.Index{left.idx, right.idx}, graph.NotSharded())
		if err != nil {
			return loweredLeaf{}, nil, err
		}
		newNodes = append(newNodes, jidx)
		leaf = loweredLeaf{idx: jidx, schema: schema}
	}

	return leaf, newNodes, nil
}

// viewKeyColumns maps a QueryGraph's ViewKey onto column indices of
// schema, the Reader's ReaderKey (spec.md §4.2 "View key"; nil for a
// bogokey query per graph.AddReader's convention).
func viewKeyColumns(qg *querygraph.QueryGraph, schema []string) []int {
	if qg.Key.Bogokey {
		return nil
	}
	out := make([]int, 0, len(qg.Key.Columns))
	for _, kc := range qg.Key.Columns {
		idx := indexOf(schema, kc.Column.Relation, kc.Column.Column)
		if idx < 0 {
			idx = indexOfPlain(schema, kc.Column.Column)
		}
		if idx >= 0 {
			out = append(out, idx)
		}
	}
	return out
}

func qualify(relation string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = relation + "." + c
	}
	return out
}

func indexOf(schema []string, relation, column string) int {
	target := relation + "." + column
	for i, s := range schema {
		if s == target {
			return i
		}
	}
	return -1
}

func indexOfPlain(schema []string, column string) int {
	suffix := "." + column
	for i, s := range schema {
		if strings.HasSuffix(s, suffix) {
			return i
		}
	}
	return -1
}

func filterOp(col int, op querygraph.CompareOp, literal string) (*ops.Filter, error) {
	cmp, err := compareOp(op)
	if err != nil {
		return nil, err
	}
	return &ops.Filter{Column: col, Op: cmp, Const: literalToValue(literal), Parent: 0}, nil
}

func compareOp(op querygraph.CompareOp) (ops.CompareOp, error) {
	switch op {
	case querygraph.OpEq:
		return ops.CmpEq, nil
	case querygraph.OpNe:
		return ops.CmpNeq, nil
	case querygraph.OpLt:
		return ops.CmpLt, nil
	case querygraph.OpLe:
		return ops.CmpLte, nil
	case querygraph.OpGt:
		return ops.CmpGt, nil
	case querygraph.OpGe:
		return ops.CmpGte, nil
	default:
		return 0, ferr.Newf(ferr.KindUnsupported, "unsupported comparison operator %q", op)
	}
}

// literalToValue converts a WHERE literal's textual form (as captured by
// the QG Builder) into a typed Value; integers parse as Int64, everything
// else (including quoted strings, with their quotes stripped) as Text.
func literalToValue(s string) value.Value {
	unquoted := strings.Trim(s, "'\"")
	if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
		return value.NewInt64(n)
	}
	return value.NewText(unquoted)
}
