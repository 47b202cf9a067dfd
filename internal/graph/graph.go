package graph

import (
	"fmt"

	"github.com/flowmesh/dataflow/internal/ferr"
)

// Graph owns the full node set and enforces spec.md §3's structural
// invariants: exactly one Source with no parents; every Base is a direct
// child of Source; every Reader has exactly one parent and no children;
// once placed a node's local address/domain never change; a domain's node
// set is append-only within a migration; the graph stays acyclic.
type Graph struct {
	nodes  map[Index]*Node
	source Index
	nextID Index
}

// New creates a graph containing only its Source node (invariant i).
func New() *Graph {
	g := &Graph{nodes: make(map[Index]*Node)}
	src := newNode(0, VariantSource, "source", nil)
	g.nodes[0] = src
	g.source = 0
	g.nextID = 1
	return g
}

// Source returns the graph's single root index.
func (g *Graph) Source() Index { return g.source }

// Node looks up a node by index.
func (g *Graph) Node(idx Index) (*Node, bool) {
	n, ok := g.nodes[idx]
	return n, ok
}

// MustNode panics if idx is absent; used internally where the caller has
// already validated idx comes from this graph.
func (g *Graph) MustNode(idx Index) *Node {
	n, ok := g.nodes[idx]
	if !ok {
		panic(fmt.Sprintf("graph: node %d not found", idx))
	}
	return n
}

func (g *Graph) Contains(idx Index) bool {
	_, ok := g.nodes[idx]
	return ok
}

// Len returns the number of live nodes, including Source.
func (g *Graph) Len() int { return len(g.nodes) }

// AddBase inserts a Base node as a direct child of Source (invariant ii).
func (g *Graph) AddBase(name string, columns []string, sharding ShardingMode) (*Node, error) {
	return g.addChild(VariantBase, name, columns, sharding, []Index{g.source})
}

// AddInternal inserts an operator node with the given parents.
func (g *Graph) AddInternal(name string, columns []string, op Op, parents []Index, sharding ShardingMode) (*Node, error) {
	n, err := g.addChild(VariantInternal, name, columns, sharding, parents)
	if err != nil {
		return nil, err
	}
	n.Op = op
	return n, nil
}

// AddReader inserts a Reader node with exactly one parent and the given
// key columns (invariant iii).
func (g *Graph) AddReader(name string, parent Index, keyCols []int) (*Node, error) {
	n, err := g.addChild(VariantReader, name, nil, NotSharded(), []Index{parent})
	if err != nil {
		return nil, err
	}
	p := g.MustNode(parent)
	n.Columns = append([]string(nil), p.Columns...)
	n.ReaderKey = append([]int(nil), keyCols...)
	return n, nil
}

// AddIngress / AddEgress / AddSharder insert domain-boundary nodes
// (spec.md §3 variant list); they behave structurally like Internal nodes
// with exactly the parents/children migration wiring gives them.
func (g *Graph) AddIngress(name string, columns []string, parents []Index) (*Node, error) {
	return g.addChild(VariantIngress, name, columns, NotSharded(), parents)
}

func (g *Graph) AddEgress(name string, columns []string, parents []Index) (*Node, error) {
	return g.addChild(VariantEgress, name, columns, NotSharded(), parents)
}

func (g *Graph) AddSharder(name string, columns []string, parents []Index, sharding ShardingMode) (*Node, error) {
	return g.addChild(VariantSharder, name, columns, sharding, parents)
}

func (g *Graph) addChild(variant Variant, name string, columns []string, sharding ShardingMode, parents []Index) (*Node, error) {
	for _, p := range parents {
		if !g.Contains(p) {
			return nil, ferr.Newf(ferr.KindInvalidNodeType, "parent node %d does not exist", p)
		}
	}
	idx := g.nextID
	g.nextID++
	n := newNode(idx, variant, name, columns)
	n.Sharding = sharding
	n.Parents = append([]Index(nil), parents...)
	g.nodes[idx] = n
	for _, p := range parents {
		pn := g.MustNode(p)
		pn.Children = append(pn.Children, idx)
	}
	return n, nil
}

// Place assigns a node's domain and local address. Returns an error if the
// node is already placed (invariant iv: immutable once set).
func (g *Graph) Place(idx Index, domain DomainIndex, local LocalAddr) error {
	n, ok := g.nodes[idx]
	if !ok {
		return ferr.Newf(ferr.KindInvalidNodeType, "node %d does not exist", idx)
	}
	if n.Placed() {
		return ferr.Newf(ferr.KindInvalidNodeType, "node %d already placed in domain %d", idx, n.Domain)
	}
	n.Domain = domain
	n.Local = local
	return nil
}

// Remove deletes idx, but only if it has no children (invariant v:
// "cross-migration removals require the node to have no children"). The
// node is unlinked from its parents' child lists.
func (g *Graph) Remove(idx Index) error {
	n, ok := g.nodes[idx]
	if !ok {
		return nil
	}
	if len(n.Children) > 0 {
		return ferr.Newf(ferr.KindInvalidNodeType, "cannot remove node %d: has %d children", idx, len(n.Children))
	}
	for _, p := range n.Parents {
		pn, ok := g.nodes[p]
		if !ok {
			continue
		}
		pn.Children = removeIndex(pn.Children, idx)
	}
	delete(g.nodes, idx)
	return nil
}

func removeIndex(s []Index, target Index) []Index {
	out := s[:0]
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// Ancestors walks parents transitively starting at idx, stopping at nodes
// already visited, used by migration's orphan-removal walk (spec.md
// §4.4 step 6: "walk orphan ancestors up to the first shared predecessor").
func (g *Graph) Ancestors(idx Index) []Index {
	seen := map[Index]bool{idx: true}
	var order []Index
	var walk func(Index)
	walk = func(i Index) {
		n, ok := g.nodes[i]
		if !ok {
			return
		}
		for _, p := range n.Parents {
			if !seen[p] {
				seen[p] = true
				order = append(order, p)
				walk(p)
			}
		}
	}
	walk(idx)
	return order
}

// Clone deep-copies the graph so a Migration can stage mutations without
// holding an exclusive borrow across suspension points (spec.md §5:
// "migrations therefore stage mutations on a clone of the graph").
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		nodes:  make(map[Index]*Node, len(g.nodes)),
		source: g.source,
		nextID: g.nextID,
	}
	for idx, n := range g.nodes {
		cp := *n
		cp.Columns = append([]string(nil), n.Columns...)
		cp.Parents = append([]Index(nil), n.Parents...)
		cp.Children = append([]Index(nil), n.Children...)
		cp.ReaderKey = append([]int(nil), n.ReaderKey...)
		cp.Dropped = append([]int(nil), n.Dropped...)
		clone.nodes[idx] = &cp
	}
	return clone
}

// Nodes returns every node in ascending index order, the deterministic
// iteration order invariants vi and spec.md §4.2's determinism requirement
// both depend on.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	// Insertion-ordered by Index; a plain insertion sort since graphs here are
	// small relative to sort overhead and Index is already monotonic
	// except after Remove, so we sort explicitly to stay correct.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Index > out[j].Index; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
