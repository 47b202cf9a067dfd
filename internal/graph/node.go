// Package graph implements the dataflow graph described in spec.md §3:
// a DAG of Source/Base/Internal/Reader/Ingress/Egress/Sharder nodes with
// stable global indices, local addresses assigned at placement, and the
// six structural invariants listed there.
//
// The tagged-variant design follows spec.md §9's "Deep inheritance of
// operator nodes becomes a tagged variant" note directly; shared fields
// (global id, column schema, domain, local address, sharding) live on Node
// itself rather than being duplicated per variant, the way
// johnjansen-torua's Shard struct keeps identity fields (ID, Primary)
// alongside variant-specific state (Store, Stats) in one struct.
package graph

import "fmt"

// Index is a node's stable global index, assigned on insert and never
// reused (spec.md §3 invariants).
type Index uint64

// LocalAddr is a node's address within its domain, assigned once at
// placement and immutable thereafter (invariant iv).
type LocalAddr uint32

// DomainIndex identifies a domain; dense, monotonically allocated
// (spec.md §3, "Domain").
type DomainIndex uint32

const NoDomain DomainIndex = ^DomainIndex(0)
const NoLocalAddr LocalAddr = ^LocalAddr(0)

// Variant tags the kind of node, replacing the deep inheritance hierarchy
// spec.md §9 calls out.
type Variant uint8

const (
	VariantSource Variant = iota
	VariantBase
	VariantInternal
	VariantReader
	VariantIngress
	VariantEgress
	VariantSharder
)

func (v Variant) String() string {
	switch v {
	case VariantSource:
		return "Source"
	case VariantBase:
		return "Base"
	case VariantInternal:
		return "Internal"
	case VariantReader:
		return "Reader"
	case VariantIngress:
		return "Ingress"
	case VariantEgress:
		return "Egress"
	case VariantSharder:
		return "Sharder"
	default:
		return "Unknown"
	}
}

// ShardingMode is how a node's output rows are partitioned across a
// domain's shards (spec.md §3: "ByColumn(col, n) or None").
type ShardingMode struct {
	Column int  // meaningful only when ByColumn is true
	N      int  // number of shards; meaningful only when ByColumn is true
	ByCol  bool
}

func ShardByColumn(col, n int) ShardingMode { return ShardingMode{ByCol: true, Column: col, N: n} }
func NotSharded() ShardingMode              { return ShardingMode{} }

// Op is the operator carried by an Internal node. Concrete operator kinds
// (filter, project, join, aggregate, union, topk) are defined by whatever
// package constructs the node (querygraph/migration); graph itself only
// needs to know an Internal node has one, to keep the package free of a
// dependency on the lowering pipeline.
type Op interface {
	OpName() string
	// Parents returns, in order, the local input indices this op reads
	// from within its owning node's Parents list.
	Parents() []int
}

// Node is a single vertex in the dataflow graph. Every variant shares this
// struct; variant-specific payload lives in Op (for Internal) or in the
// fields below that only apply to certain variants (documented per
// field).
type Node struct {
	Op Op // only set when Variant == VariantInternal

	Name    string
	Columns []string

	Parents  []Index
	Children []Index

	// ReaderKey holds the key column indices for a Reader node (glossary:
	// "Reader: a leaf cache keyed by the query's parameter columns").
	ReaderKey []int

	Sharding ShardingMode

	Index  Index
	Local  LocalAddr
	Domain DomainIndex

	Variant Variant

	// Dropped marks columns present in the upstream schema but not
	// projected further (spec.md §6 table_builder: "dropped columns").
	Dropped []int
}

// Placed reports whether this node has been assigned a domain and local
// address (invariant iv: once placed, these fields are immutable).
func (n *Node) Placed() bool {
	return n.Domain != NoDomain && n.Local != NoLocalAddr
}

func newNode(idx Index, variant Variant, name string, columns []string) *Node {
	return &Node{
		Index:   idx,
		Variant: variant,
		Name:    name,
		Columns: append([]string(nil), columns...),
		Domain:  NoDomain,
		Local:   NoLocalAddr,
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d(%s)", n.Variant, n.Index, n.Name)
}
