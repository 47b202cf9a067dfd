package querygraph

import (
	"github.com/flowmesh/dataflow/internal/ferr"
	"vitess.io/vitess/go/vt/sqlparser"
)

// builderState accumulates classified predicates while walking the
// normalized WHERE tree; it tracks the next placeholder index so
// `?`-style parameters are numbered in left-to-right appearance order.
type builderState struct {
	relations  map[string]bool
	local      []LocalPredicate
	joins      []JoinPredicate
	params     []Parameter
	global     []string
	nextParam  int
}

// classifyWhere splits the top-level conjunction into local/join/parameter/
// global predicate buckets (spec.md §4.2 "Classification of WHERE").
func classifyWhere(e sqlparser.Expr, relations map[string]bool) (*builderState, error) {
	st := &builderState{relations: relations}
	for _, atom := range flattenAnd(e) {
		if err := st.classifyAtom(atom); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func flattenAnd(e sqlparser.Expr) []sqlparser.Expr {
	if e == nil {
		return nil
	}
	if paren, ok := e.(*sqlparser.ParenExpr); ok {
		return flattenAnd(paren.Expr)
	}
	and, ok := e.(*sqlparser.AndExpr)
	if !ok {
		return []sqlparser.Expr{e}
	}
	return append(flattenAnd(and.Left), flattenAnd(and.Right)...)
}

// classifyAtom classifies one top-level conjunct.
func (st *builderState) classifyAtom(e sqlparser.Expr) error {
	if or, ok := e.(*sqlparser.OrExpr); ok {
		return st.classifyOr(or)
	}

	cmp, ok := e.(*sqlparser.ComparisonExpr)
	if !ok {
		// IN lists, LIKE, IS NULL, etc. are "anything else" -> global.
		st.global = append(st.global, sqlparser.String(e))
		return nil
	}

	op, ok := compareOp(cmp.Operator)
	if !ok {
		st.global = append(st.global, sqlparser.String(e))
		return nil
	}

	leftCol, leftIsCol := asColumn(cmp.Left)
	rightCol, rightIsCol := asColumn(cmp.Right)

	switch {
	case leftIsCol && rightIsCol:
		if leftCol.Relation == rightCol.Relation {
			// Same-relation column comparison: local.
			st.local = append(st.local, LocalPredicate{Relation: leftCol.Relation, Column: leftCol.Column, Op: op, Literal: rightCol.Column})
			return nil
		}
		if op != OpEq {
			st.global = append(st.global, sqlparser.String(e))
			return nil
		}
		// The sides are kept as written; BuildSelect's Edge takes A and B
		// from them, so edge and predicate agree. They are not reordered to
		// FROM relation order.
		st.joins = append(st.joins, JoinPredicate{Left: leftCol, Right: rightCol})
		return nil

	case leftIsCol && isPlaceholder(cmp.Right):
		idx := st.nextParam
		st.nextParam++
		st.params = append(st.params, Parameter{Column: leftCol, Op: op, PlaceholderIdx: idx})
		return nil

	case rightIsCol && isPlaceholder(cmp.Left):
		idx := st.nextParam
		st.nextParam++
		st.params = append(st.params, Parameter{Column: rightCol, Op: invertForSwap(op), PlaceholderIdx: idx})
		return nil

	case leftIsCol:
		lit, ok := asLiteral(cmp.Right)
		if !ok {
			st.global = append(st.global, sqlparser.String(e))
			return nil
		}
		st.local = append(st.local, LocalPredicate{Relation: leftCol.Relation, Column: leftCol.Column, Op: op, Literal: lit})
		return nil

	case rightIsCol:
		lit, ok := asLiteral(cmp.Left)
		if !ok {
			st.global = append(st.global, sqlparser.String(e))
			return nil
		}
		st.local = append(st.local, LocalPredicate{Relation: rightCol.Relation, Column: rightCol.Column, Op: invertForSwap(op), Literal: lit})
		return nil

	default:
		st.global = append(st.global, sqlparser.String(e))
		return nil
	}
}

// classifyOr handles a disjunction: stays local if every branch touches
// exactly one (the same) relation with no parameter/join predicates;
// otherwise the whole OR is `Unsupported` (spec.md §4.2: "OR containing
// any parameter or join predicate is rejected with Unsupported").
func (st *builderState) classifyOr(or *sqlparser.OrExpr) error {
	branches := flattenOr(or)
	sub := &builderState{relations: st.relations}
	for _, b := range branches {
		if err := sub.classifyAtom(b); err != nil {
			return err
		}
	}
	if len(sub.joins) > 0 || len(sub.params) > 0 {
		return ferr.New(ferr.KindUnsupported, "OR spanning a join or parameter predicate is not supported")
	}
	relSet := map[string]bool{}
	for _, l := range sub.local {
		relSet[l.Relation] = true
	}
	if len(relSet) > 1 {
		return ferr.New(ferr.KindUnsupported, "OR spanning multiple tables is not supported")
	}
	// A clean single-table OR still can't be expressed as a LocalPredicate
	// list (those are implicitly ANDed); record it verbatim as global so
	// downstream planning applies it as a residual filter expression.
	st.global = append(st.global, sqlparser.String(or))
	return nil
}

func flattenOr(e sqlparser.Expr) []sqlparser.Expr {
	if paren, ok := e.(*sqlparser.ParenExpr); ok {
		return flattenOr(paren.Expr)
	}
	or, ok := e.(*sqlparser.OrExpr)
	if !ok {
		return []sqlparser.Expr{e}
	}
	return append(flattenOr(or.Left), flattenOr(or.Right)...)
}

func compareOp(op sqlparser.ComparisonExprOperator) (CompareOp, bool) {
	switch op {
	case sqlparser.EqualOp:
		return OpEq, true
	case sqlparser.NotEqualOp:
		return OpNe, true
	case sqlparser.LessThanOp:
		return OpLt, true
	case sqlparser.LessEqualOp:
		return OpLe, true
	case sqlparser.GreaterThanOp:
		return OpGt, true
	case sqlparser.GreaterEqualOp:
		return OpGe, true
	default:
		return "", false
	}
}

// invertForSwap flips the operator's sense when the column and the
// comparand (literal or placeholder) swap sides: "? < col" becomes
// "col > ?".
func invertForSwap(op CompareOp) CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpGt:
		return OpLt
	case OpLe:
		return OpGe
	case OpGe:
		return OpLe
	default:
		return op
	}
}

func asColumn(e sqlparser.Expr) (ColumnRef, bool) {
	col, ok := e.(*sqlparser.ColName)
	if !ok {
		return ColumnRef{}, false
	}
	return ColumnRef{Relation: col.Qualifier.Name.String(), Column: col.Name.String()}, true
}

func asLiteral(e sqlparser.Expr) (string, bool) {
	switch v := e.(type) {
	case *sqlparser.Literal:
		return string(v.Val), true
	default:
		return "", false
	}
}

// isPlaceholder reports whether e is a `?` bind variable. Vitess surfaces
// these as *sqlparser.Argument in the AST this package targets.
func isPlaceholder(e sqlparser.Expr) bool {
	switch e.(type) {
	case *sqlparser.Argument:
		return true
	default:
		return false
	}
}
