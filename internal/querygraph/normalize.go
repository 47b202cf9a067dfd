package querygraph

import (
	"github.com/flowmesh/dataflow/internal/ferr"
	"vitess.io/vitess/go/vt/sqlparser"
)

// normalizeWhere desugars BETWEEN and NOT before classification, per
// spec.md §4.2: "NOT and BETWEEN must have been normalized away before
// this phase (failure = internal error)".
func normalizeWhere(e sqlparser.Expr) (sqlparser.Expr, error) {
	switch n := e.(type) {
	case *sqlparser.ParenExpr:
		inner, err := normalizeWhere(n.Expr)
		if err != nil {
			return nil, err
		}
		return &sqlparser.ParenExpr{Expr: inner}, nil

	case *sqlparser.AndExpr:
		l, err := normalizeWhere(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := normalizeWhere(n.Right)
		if err != nil {
			return nil, err
		}
		return &sqlparser.AndExpr{Left: l, Right: r}, nil

	case *sqlparser.OrExpr:
		l, err := normalizeWhere(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := normalizeWhere(n.Right)
		if err != nil {
			return nil, err
		}
		return &sqlparser.OrExpr{Left: l, Right: r}, nil

	case *sqlparser.BetweenExpr:
		lo := &sqlparser.ComparisonExpr{Operator: sqlparser.GreaterEqualOp, Left: n.Left, Right: n.From}
		hi := &sqlparser.ComparisonExpr{Operator: sqlparser.LessEqualOp, Left: n.Left, Right: n.To}
		if n.IsBetween {
			return &sqlparser.AndExpr{Left: lo, Right: hi}, nil
		}
		// NOT BETWEEN a AND b  ==  col < a OR col > b
		lo2 := &sqlparser.ComparisonExpr{Operator: sqlparser.LessThanOp, Left: n.Left, Right: n.From}
		hi2 := &sqlparser.ComparisonExpr{Operator: sqlparser.GreaterThanOp, Left: n.Left, Right: n.To}
		return &sqlparser.OrExpr{Left: lo2, Right: hi2}, nil

	case *sqlparser.NotExpr:
		return negate(n.Expr)

	case *sqlparser.ComparisonExpr:
		return n, nil

	default:
		// Anything else (IS NULL, IN, LIKE, function calls) passes through
		// untouched; classify.go routes it to global predicates.
		return e, nil
	}
}

// negate pushes a NOT one level down, de Morgan-style, reducing to
// comparisons and conjunctions/disjunctions this package can classify.
func negate(e sqlparser.Expr) (sqlparser.Expr, error) {
	switch n := e.(type) {
	case *sqlparser.ParenExpr:
		inner, err := negate(n.Expr)
		if err != nil {
			return nil, err
		}
		return &sqlparser.ParenExpr{Expr: inner}, nil

	case *sqlparser.AndExpr:
		l, err := negate(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := negate(n.Right)
		if err != nil {
			return nil, err
		}
		return &sqlparser.OrExpr{Left: l, Right: r}, nil

	case *sqlparser.OrExpr:
		l, err := negate(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := negate(n.Right)
		if err != nil {
			return nil, err
		}
		return &sqlparser.AndExpr{Left: l, Right: r}, nil

	case *sqlparser.NotExpr:
		return normalizeWhere(n.Expr)

	case *sqlparser.ComparisonExpr:
		inverse, ok := invertOp(n.Operator)
		if !ok {
			return nil, ferr.Newf(ferr.KindUnsupported, "cannot negate comparison operator %v", n.Operator)
		}
		return &sqlparser.ComparisonExpr{Operator: inverse, Left: n.Left, Right: n.Right}, nil

	case *sqlparser.BetweenExpr:
		return normalizeWhere(&sqlparser.BetweenExpr{Left: n.Left, From: n.From, To: n.To, IsBetween: !n.IsBetween})

	default:
		return nil, ferr.Newf(ferr.KindUnsupported, "cannot negate expression of type %T", e)
	}
}

func invertOp(op sqlparser.ComparisonExprOperator) (sqlparser.ComparisonExprOperator, bool) {
	switch op {
	case sqlparser.EqualOp:
		return sqlparser.NotEqualOp, true
	case sqlparser.NotEqualOp:
		return sqlparser.EqualOp, true
	case sqlparser.LessThanOp:
		return sqlparser.GreaterEqualOp, true
	case sqlparser.GreaterEqualOp:
		return sqlparser.LessThanOp, true
	case sqlparser.GreaterThanOp:
		return sqlparser.LessEqualOp, true
	case sqlparser.LessEqualOp:
		return sqlparser.GreaterThanOp, true
	default:
		return "", false
	}
}
