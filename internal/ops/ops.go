// Package ops defines the concrete Internal-node operators spec.md §3
// lists ("filter, project, join, aggregate, union, topk"), implementing
// graph.Op so migration can attach them to nodes and worker can execute
// them inside a domain's cooperative scheduler.
package ops

import (
	"github.com/flowmesh/dataflow/internal/value"
)

// CompareOp is the comparison a Filter applies between a row's column and
// its constant.
type CompareOp byte

const (
	CmpEq CompareOp = iota
	CmpNeq
	CmpLt
	CmpLte
	CmpGt
	CmpGte
)

func (c CompareOp) eval(a, b value.Value) bool {
	cmp := a.Cmp(b)
	switch c {
	case CmpEq:
		return a.Equal(b)
	case CmpNeq:
		return !a.Equal(b)
	case CmpLt:
		return cmp < 0
	case CmpLte:
		return cmp <= 0
	case CmpGt:
		return cmp > 0
	case CmpGte:
		return cmp >= 0
	default:
		return false
	}
}

// Filter keeps rows where Column `op` Const holds.
type Filter struct {
	Const  value.Value
	Column int
	Op     CompareOp
	Parent int
}

func (f *Filter) OpName() string  { return "filter" }
func (f *Filter) Parents() []int  { return []int{f.Parent} }
func (f *Filter) Apply(r value.Row) bool {
	return f.Op.eval(r[f.Column], f.Const)
}

// Project keeps only the listed column indices, in order.
type Project struct {
	Columns []int
	Parent  int
}

func (p *Project) OpName() string { return "project" }
func (p *Project) Parents() []int { return []int{p.Parent} }
func (p *Project) Apply(r value.Row) value.Row {
	return r.Project(p.Columns)
}

// JoinKind distinguishes inner and left-outer joins (spec.md §4.2 edges:
// "Join | LeftJoin").
type JoinKind byte

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// EquiPair is one equality predicate of a (possibly multi-column) join.
type EquiPair struct {
	LeftCol  int
	RightCol int
}

// Join combines rows from two parents on equi-predicates.
type Join struct {
	Kind        JoinKind
	Left        int
	Right       int
	On          []EquiPair
	LeftWidth   int
	RightWidth  int
}

func (j *Join) OpName() string { return "join" }
func (j *Join) Parents() []int { return []int{j.Left, j.Right} }

// Matches reports whether l (a row from Left) and r (a row from Right)
// satisfy every equi-predicate.
func (j *Join) Matches(l, r value.Row) bool {
	for _, p := range j.On {
		if !l[p.LeftCol].Equal(r[p.RightCol]) {
			return false
		}
	}
	return true
}

// NullRight returns a right-hand row of Nulls, used to emit the
// null-extended row for unmatched left rows under LeftJoin.
func (j *Join) NullRight() value.Row {
	r := make(value.Row, j.RightWidth)
	for i := range r {
		r[i] = value.Null
	}
	return r
}

// AggKind is the aggregate function computed per group.
type AggKind byte

const (
	AggCount AggKind = iota
	AggSum
	AggMin
	AggMax
)

// Aggregate groups rows by GroupCols and computes one AggKind over
// AggCol per group (spec.md §4.2: "Aggregate calls become a synthetic
// relation computed_columns with one output column per aggregate").
type Aggregate struct {
	Kind      AggKind
	GroupCols []int
	AggCol    int
	Parent    int
}

func (a *Aggregate) OpName() string { return "aggregate" }
func (a *Aggregate) Parents() []int { return []int{a.Parent} }

// Fold combines acc (the running aggregate state, or nil if this is the
// first row in the group) with the value at AggCol of row r.
func (a *Aggregate) Fold(acc *value.Value, r value.Row) value.Value {
	v := r[a.AggCol]
	if acc == nil {
		if a.Kind == AggCount {
			return value.NewInt64(1)
		}
		return v
	}
	switch a.Kind {
	case AggCount:
		n, _ := acc.Int64()
		return value.NewInt64(n + 1)
	case AggSum:
		sum, err := value.Arithmetic(value.OpAdd, *acc, v)
		if err != nil {
			return *acc
		}
		return sum
	case AggMin:
		if v.Cmp(*acc) < 0 {
			return v
		}
		return *acc
	case AggMax:
		if v.Cmp(*acc) > 0 {
			return v
		}
		return *acc
	default:
		return *acc
	}
}

// Union merges rows from any of Parents unchanged.
type Union struct {
	ParentList []int
}

func (u *Union) OpName() string { return "union" }
func (u *Union) Parents() []int { return u.ParentList }

// TopK keeps the K top-ranked rows per group by OrderCol: the greatest
// values when Desc is set, the smallest otherwise (spec.md §3 variant
// list: "topk").
type TopK struct {
	GroupCols []int
	OrderCol  int
	K         int
	Desc      bool
	Parent    int
}

func (t *TopK) OpName() string { return "topk" }
func (t *TopK) Parents() []int { return []int{t.Parent} }

// Less orders two rows for the TopK ranking; Less(a,b) true means a ranks
// ahead of b and should be kept over b when the group is full.
func (t *TopK) Less(a, b value.Row) bool {
	cmp := a[t.OrderCol].Cmp(b[t.OrderCol])
	if t.Desc {
		return cmp > 0
	}
	return cmp < 0
}
