package leader

import (
	"fmt"
	"strings"
)

// Graphviz renders the live graph as GraphViz dot text (spec.md §6 GET
// /graph, /simple_graph). simple drops the domain and local index from
// each node label; edges are unlabelled in both forms.
func (l *Leader) Graphviz(simple bool) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	b.WriteString("digraph dataflow {\n")
	for _, n := range l.g.Nodes() {
		label := fmt.Sprintf("%s#%d\\n%s", n.Variant, n.Index, n.Name)
		if !simple {
			label = fmt.Sprintf("%s\\ndomain=%d local=%d", label, n.Domain, n.Local)
		}
		fmt.Fprintf(&b, "  n%d [label=%q];\n", n.Index, label)
	}
	for _, n := range l.g.Nodes() {
		for _, c := range n.Children {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", n.Index, c)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
