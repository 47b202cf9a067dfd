package querygraph

import (
	"strings"

	"github.com/flowmesh/dataflow/internal/ferr"
	"golang.org/x/exp/slices"
	"vitess.io/vitess/go/vt/sqlparser"
)

// BuildSelect is the QG Builder's single entry point (spec.md §4.2):
// "Transforms a parsed SELECT into a QueryGraph". It never parses SQL
// text itself — the caller (recipe.Extend, ultimately) hands it an
// already-parsed *sqlparser.Select.
func BuildSelect(stmt *sqlparser.Select) (*QueryGraph, error) {
	qg := &QueryGraph{}

	relations := map[string]bool{}
	if err := collectRelations(stmt.From, relations, qg); err != nil {
		return nil, err
	}
	for r := range relations {
		qg.JoinOrder = append(qg.JoinOrder, r)
	}
	slices.Sort(qg.JoinOrder)
	qg.Relations = append([]string(nil), qg.JoinOrder...)

	if stmt.Where != nil {
		normalized, err := normalizeWhere(stmt.Where.Expr)
		if err != nil {
			return nil, err
		}
		st, err := classifyWhere(normalized, relations)
		if err != nil {
			return nil, err
		}
		qg.LocalPredicates = st.local
		qg.Parameters = st.params
		qg.GlobalPredicates = st.global
		for _, j := range st.joins {
			qg.Edges = append(qg.Edges, Edge{Kind: EdgeJoin, A: j.Left.Relation, B: j.Right.Relation, OnCols: []JoinPredicate{j}})
		}
	}

	cols, err := buildOutputColumns(stmt.SelectExprs)
	if err != nil {
		return nil, err
	}
	qg.Columns = cols

	if len(stmt.GroupBy) > 0 {
		var grp []ColumnRef
		for _, e := range stmt.GroupBy {
			if col, ok := asColumn(e); ok {
				grp = append(grp, col)
			}
		}
		if len(grp) > 0 {
			qg.Edges = append(qg.Edges, Edge{Kind: EdgeGroupBy, A: grp[0].Relation, B: "computed_columns", GroupBy: grp})
		}
	}

	if err := applyOrderBy(stmt.OrderBy, qg); err != nil {
		return nil, err
	}

	if stmt.Limit != nil {
		qg.Pagination.Has = true
		if n, ok := asLiteral(stmt.Limit.Rowcount); ok {
			qg.Pagination.Limit = atoiSafe(n)
		}
		if stmt.Limit.Offset != nil {
			if n, ok := asLiteral(stmt.Limit.Offset); ok {
				qg.Pagination.Offset = atoiSafe(n)
			}
		}
	}

	key, err := buildViewKey(qg)
	if err != nil {
		return nil, err
	}
	qg.Key = key

	sortGraph(qg)
	return qg, nil
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// collectRelations walks FROM, registering every table name and turning
// explicit `JOIN ... ON` / `USING` clauses into Join/LeftJoin edges
// (spec.md §4.2 "Edges").
func collectRelations(exprs sqlparser.TableExprs, relations map[string]bool, qg *QueryGraph) error {
	for _, te := range exprs {
		if err := collectTableExpr(te, relations, qg); err != nil {
			return err
		}
	}
	return nil
}

func collectTableExpr(te sqlparser.TableExpr, relations map[string]bool, qg *QueryGraph) error {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		name := relationName(t)
		relations[name] = true
		return nil

	case *sqlparser.ParenTableExpr:
		return collectRelations(t.Exprs, relations, qg)

	case *sqlparser.JoinTableExpr:
		if err := collectTableExpr(t.LeftExpr, relations, qg); err != nil {
			return err
		}
		if err := collectTableExpr(t.RightExpr, relations, qg); err != nil {
			return err
		}
		kind := EdgeJoin
		if t.Join == sqlparser.LeftJoinType {
			kind = EdgeLeftJoin
		}
		leftName := tableExprName(t.LeftExpr)
		rightName := tableExprName(t.RightExpr)

		var preds []JoinPredicate
		switch cond := t.Condition.On.(type) {
		case nil:
			// empty constraint = cartesian (spec.md §4.2)
		default:
			ps, err := extractEquiChain(cond)
			if err != nil {
				return err
			}
			for i, p := range ps {
				if p.Left.Relation == rightName && p.Right.Relation == leftName {
					ps[i] = JoinPredicate{Left: p.Right, Right: p.Left}
				}
			}
			preds = ps
		}
		for _, u := range t.Condition.Using {
			preds = append(preds, JoinPredicate{
				Left:  ColumnRef{Relation: leftName, Column: u.String()},
				Right: ColumnRef{Relation: rightName, Column: u.String()},
			})
		}
		if len(preds) > 0 || t.Condition.On == nil {
			qg.Edges = append(qg.Edges, Edge{Kind: kind, A: leftName, B: rightName, OnCols: preds})
		}
		return nil

	default:
		return ferr.Newf(ferr.KindUnsupported, "unsupported FROM clause element %T", te)
	}
}

func relationName(t *sqlparser.AliasedTableExpr) string {
	if !t.As.IsEmpty() {
		return t.As.String()
	}
	if tn, ok := t.Expr.(sqlparser.TableName); ok {
		return tn.Name.String()
	}
	return sqlparser.String(t.Expr)
}

func tableExprName(te sqlparser.TableExpr) string {
	if a, ok := te.(*sqlparser.AliasedTableExpr); ok {
		return relationName(a)
	}
	return sqlparser.String(te)
}

// extractEquiChain requires an explicit JOIN ON to be an AND-chain of
// equalities (spec.md §4.2: "Explicit JOIN … ON supports only AND-chained
// equalities").
func extractEquiChain(e sqlparser.Expr) ([]JoinPredicate, error) {
	var out []JoinPredicate
	for _, atom := range flattenAnd(e) {
		cmp, ok := atom.(*sqlparser.ComparisonExpr)
		if !ok || cmp.Operator != sqlparser.EqualOp {
			return nil, ferr.New(ferr.KindUnsupported, "JOIN ON supports only AND-chained equalities")
		}
		l, lok := asColumn(cmp.Left)
		r, rok := asColumn(cmp.Right)
		if !lok || !rok {
			return nil, ferr.New(ferr.KindUnsupported, "JOIN ON equality must compare two columns")
		}
		out = append(out, JoinPredicate{Left: l, Right: r})
	}
	return out, nil
}

// buildOutputColumns lowers SELECT fields per spec.md §4.2 "Output
// columns": Data, Literal, Expression, with aggregate calls routed to a
// synthetic computed_columns relation.
func buildOutputColumns(exprs sqlparser.SelectExprs) ([]OutputColumn, error) {
	var out []OutputColumn
	for _, se := range exprs {
		switch f := se.(type) {
		case *sqlparser.StarExpr:
			out = append(out, OutputColumn{Kind: OutputExpression, Expression: "*"})

		case *sqlparser.AliasedExpr:
			alias := f.As.String()
			switch inner := f.Expr.(type) {
			case *sqlparser.ColName:
				col := ColumnRef{Relation: inner.Qualifier.Name.String(), Column: inner.Name.String()}
				if alias == "" {
					alias = inner.Name.String()
				}
				out = append(out, OutputColumn{Kind: OutputData, Alias: alias, Column: col})

			case *sqlparser.Literal:
				if alias == "" {
					alias = string(inner.Val)
				}
				out = append(out, OutputColumn{Kind: OutputLiteral, Alias: alias, Literal: string(inner.Val)})

			case *sqlparser.FuncExpr:
				name := strings.ToLower(inner.Name.String())
				if isAggregateFunc(name) {
					if alias == "" {
						alias = sqlparser.String(f.Expr)
					}
					out = append(out, OutputColumn{Kind: OutputExpression, Alias: alias, Expression: sqlparser.String(f.Expr), IsAggregate: true, AggFunc: name})
				} else {
					if alias == "" {
						alias = sqlparser.String(f.Expr)
					}
					out = append(out, OutputColumn{Kind: OutputExpression, Alias: alias, Expression: sqlparser.String(f.Expr)})
				}

			default:
				if alias == "" {
					alias = sqlparser.String(f.Expr)
				}
				out = append(out, OutputColumn{Kind: OutputExpression, Alias: alias, Expression: sqlparser.String(f.Expr)})
			}

		default:
			return nil, ferr.Newf(ferr.KindUnsupported, "unsupported select field %T", se)
		}
	}
	return out, nil
}

func isAggregateFunc(name string) bool {
	switch name {
	case "count", "sum", "avg", "min", "max":
		return true
	default:
		return false
	}
}

// applyOrderBy adds a Data projection for an ORDER BY column not already
// projected, or lifts a function call into computed_columns (spec.md
// §4.2 "Output columns").
func applyOrderBy(order sqlparser.OrderBy, qg *QueryGraph) error {
	for _, o := range order {
		switch e := o.Expr.(type) {
		case *sqlparser.ColName:
			col := ColumnRef{Relation: e.Qualifier.Name.String(), Column: e.Name.String()}
			found := false
			for _, c := range qg.Columns {
				if c.Kind == OutputData && c.Column == col {
					found = true
					break
				}
			}
			if !found {
				qg.Columns = append(qg.Columns, OutputColumn{Kind: OutputData, Alias: col.Column, Column: col})
			}
		case *sqlparser.FuncExpr:
			qg.Columns = append(qg.Columns, OutputColumn{Kind: OutputExpression, Alias: sqlparser.String(e), Expression: sqlparser.String(e)})
		}
	}
	return nil
}

// buildViewKey derives the ViewKey from the query's parameters, per
// spec.md §4.2 "View key".
func buildViewKey(qg *QueryGraph) (ViewKey, error) {
	if len(qg.Parameters) == 0 {
		return ViewKey{Bogokey: true, Index: IndexHash}, nil
	}

	hasAgg := false
	for _, c := range qg.Columns {
		if c.IsAggregate {
			hasAgg = true
			break
		}
	}

	params := append([]Parameter(nil), qg.Parameters...)
	slices.SortFunc(params, func(a, b Parameter) int { return a.PlaceholderIdx - b.PlaceholderIdx })

	hasRange, hasEq := false, false
	hasUpperBound, hasLowerBound := false, false
	for _, p := range params {
		switch p.Op {
		case OpLt, OpLe:
			hasRange, hasUpperBound = true, true
		case OpGt, OpGe:
			hasRange, hasLowerBound = true, true
		case OpEq:
			hasEq = true
		}
	}
	if hasUpperBound && hasLowerBound {
		return ViewKey{}, ferr.New(ferr.KindUnsupported, "mixing upper- and lower-bound range parameters on the same view key is not supported")
	}
	if hasAgg && hasRange {
		return ViewKey{}, ferr.New(ferr.KindUnsupported, "aggregate queries do not support a non-equality parameter")
	}

	cols := make([]ViewKeyColumn, 0, len(params))
	for _, p := range params {
		cols = append(cols, ViewKeyColumn{Column: p.Column, PlaceholderIdx: p.PlaceholderIdx, Op: p.Op, IsRange: p.Op.IsRange()})
	}

	switch {
	case hasRange && hasEq:
		// range column sorted last, mixed index is a hash map (spec.md):
		slices.SortStableFunc(cols, func(a, b ViewKeyColumn) int {
			switch {
			case a.IsRange == b.IsRange:
				return 0
			case b.IsRange:
				return -1
			default:
				return 1
			}
		})
		return ViewKey{Columns: cols, Index: IndexHash}, nil
	case hasRange:
		return ViewKey{Columns: cols, Index: IndexOrdered}, nil
	default:
		return ViewKey{Columns: cols, Index: IndexHash}, nil
	}
}

func sortGraph(qg *QueryGraph) {
	slices.SortFunc(qg.LocalPredicates, func(a, b LocalPredicate) int {
		if a.Relation != b.Relation {
			return strings.Compare(a.Relation, b.Relation)
		}
		return strings.Compare(a.Column, b.Column)
	})
	slices.SortFunc(qg.Edges, func(a, b Edge) int {
		if a.A != b.A {
			return strings.Compare(a.A, b.A)
		}
		return strings.Compare(a.B, b.B)
	})
	slices.Sort(qg.GlobalPredicates)
}
