// Package querygraph implements the QG Builder of spec.md §4.2: lowering a
// parsed SELECT into a normalized relational-algebra graph (relations,
// join/groupby edges, output columns, parameter columns, pagination) used
// as the unit of migration planning.
//
// Grounded on noria/noria-server/src/controller/sql/query_graph.rs
// (original_source) for the relation/edge/QueryGraphEdge shape and the
// WHERE-classification rules; the parser itself is
// vitess.io/vitess/go/vt/sqlparser (nethalo-dbsafe), consumed as an
// external collaborator per spec.md §1's non-goal on query parsing.
package querygraph

// ColumnRef names one column of one relation.
type ColumnRef struct {
	Relation string
	Column   string
}

func (c ColumnRef) Less(o ColumnRef) bool {
	if c.Relation != o.Relation {
		return c.Relation < o.Relation
	}
	return c.Column < o.Column
}

// CompareOp is a WHERE-clause comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// IsRange reports whether op participates in an ordered (range) ViewKey
// index rather than a hash index (spec.md §4.2 "View key").
func (op CompareOp) IsRange() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// LocalPredicate is a WHERE atom referencing only one relation (spec.md
// §4.2 "local").
type LocalPredicate struct {
	Relation string
	Column   string
	Op       CompareOp
	Literal  string // textual literal, untyped at this layer
}

// JoinPredicate is an equality atom between two distinct relations'
// columns (spec.md §4.2 "join"). Left/Right follow the owning Edge's A/B:
// for an explicit JOIN that is the FROM order (Left from the left table
// expression); a WHERE-clause equi-join keeps its sides as written and its
// Edge takes A/B from them, so those are not reordered to FROM order.
type JoinPredicate struct {
	Left  ColumnRef
	Right ColumnRef
}

// Parameter is a WHERE atom comparing a column to a placeholder (spec.md
// §4.2 "parameter").
type Parameter struct {
	Column         ColumnRef
	Op             CompareOp
	PlaceholderIdx int
}

// EdgeKind distinguishes the three edge variants spec.md §4.2 names.
type EdgeKind int

const (
	EdgeJoin EdgeKind = iota
	EdgeLeftJoin
	EdgeGroupBy
)

// Edge connects two relations (A, B); Joins carry their equi-predicates,
// GroupBy carries the grouped columns.
type Edge struct {
	Kind    EdgeKind
	A, B    string
	OnCols  []JoinPredicate // Join/LeftJoin
	GroupBy []ColumnRef     // GroupBy
}

// OutputKind distinguishes the three SELECT-field shapes spec.md §4.2
// "Output columns" names.
type OutputKind int

const (
	OutputData OutputKind = iota
	OutputLiteral
	OutputExpression
)

// OutputColumn is one projected SELECT field.
type OutputColumn struct {
	Kind       OutputKind
	Alias      string
	Column     ColumnRef // OutputData
	Literal    string    // OutputLiteral
	Expression string    // OutputExpression: textual form of the expression
	IsAggregate bool
	AggFunc    string // "count","sum","avg","min","max" when IsAggregate
}

// IndexType is the lookup structure a ViewKey requires.
type IndexType int

const (
	IndexHash IndexType = iota
	IndexOrdered
)

// ViewKeyColumn is one column of a reader's lookup key (spec.md §4.2
// "View key").
type ViewKeyColumn struct {
	Column         ColumnRef
	PlaceholderIdx int
	Op             CompareOp
	IsRange        bool
}

// ViewKey is the lookup schema of a reader (glossary: "the lookup schema
// of a reader, derived from the query's parameter columns").
type ViewKey struct {
	Columns []ViewKeyColumn
	Index   IndexType
	// Bogokey is true when the query has no parameters: the key is a
	// single synthetic column and the index is a hash map.
	Bogokey bool
}

// Pagination carries LIMIT/OFFSET, when present.
type Pagination struct {
	Limit  int
	Offset int
	Has    bool
}

// QueryGraph is the BuildSelect result: spec.md §4.2's
// "QueryGraph{relations, edges, columns, join_order, global_predicates,
// pagination}".
type QueryGraph struct {
	Relations        []string
	Edges            []Edge
	Columns          []OutputColumn
	JoinOrder        []string
	LocalPredicates  []LocalPredicate
	Parameters       []Parameter
	GlobalPredicates []string // textual form of predicates that aren't local/join/parameter
	Pagination       Pagination
	Key              ViewKey
}
