package querygraph

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Hash returns a hash stable across processes for equal input (spec.md
// §4.2 "Determinism": "relations and edges must be iterated in sorted key
// order; all collections participating in the hash are sorted before
// hashing"). BuildSelect already leaves every slice sorted; Hash re-sorts
// defensively so a caller mutating a QueryGraph in place can't silently
// break determinism.
func (qg *QueryGraph) Hash() uint64 {
	var b strings.Builder

	relations := append([]string(nil), qg.Relations...)
	slices.Sort(relations)
	b.WriteString("R:")
	b.WriteString(strings.Join(relations, ","))

	edges := append([]Edge(nil), qg.Edges...)
	slices.SortFunc(edges, func(a, b Edge) int {
		if a.A != b.A {
			return strings.Compare(a.A, b.A)
		}
		if a.B != b.B {
			return strings.Compare(a.B, b.B)
		}
		return int(a.Kind) - int(b.Kind)
	})
	b.WriteString("|E:")
	for _, e := range edges {
		on := append([]JoinPredicate(nil), e.OnCols...)
		slices.SortFunc(on, func(a, c JoinPredicate) int {
			switch {
			case a.Left.Less(c.Left):
				return -1
			case c.Left.Less(a.Left):
				return 1
			default:
				return 0
			}
		})
		fmt.Fprintf(&b, "[%d:%s-%s", e.Kind, e.A, e.B)
		for _, p := range on {
			fmt.Fprintf(&b, ":%s.%s=%s.%s", p.Left.Relation, p.Left.Column, p.Right.Relation, p.Right.Column)
		}
		b.WriteString("]")
	}

	locals := append([]LocalPredicate(nil), qg.LocalPredicates...)
	slices.SortFunc(locals, func(a, b LocalPredicate) int {
		if a.Relation != b.Relation {
			return strings.Compare(a.Relation, b.Relation)
		}
		return strings.Compare(a.Column, b.Column)
	})
	b.WriteString("|L:")
	for _, l := range locals {
		fmt.Fprintf(&b, "[%s.%s%s%s]", l.Relation, l.Column, l.Op, l.Literal)
	}

	params := append([]Parameter(nil), qg.Parameters...)
	slices.SortFunc(params, func(a, b Parameter) int { return a.PlaceholderIdx - b.PlaceholderIdx })
	b.WriteString("|P:")
	for _, p := range params {
		fmt.Fprintf(&b, "[%d:%s.%s%s]", p.PlaceholderIdx, p.Column.Relation, p.Column.Column, p.Op)
	}

	global := append([]string(nil), qg.GlobalPredicates...)
	slices.Sort(global)
	b.WriteString("|G:")
	b.WriteString(strings.Join(global, ";"))

	cols := append([]OutputColumn(nil), qg.Columns...)
	b.WriteString("|C:")
	for _, c := range cols {
		fmt.Fprintf(&b, "[%d:%s:%s:%s:%s]", c.Kind, c.Alias, c.Column.Relation+"."+c.Column.Column, c.Literal, c.Expression)
	}

	return fnv1a(b.String())
}

func fnv1a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
