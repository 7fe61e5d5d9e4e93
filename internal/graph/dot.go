package graph

import (
	"fmt"
	"strings"
)

// DOT exports the dependency graph as Graphviz DOT text.
// Edges point from a node to its dependency ("needs"). Output is
// deterministic: nodes and edges follow the stable ID order.
func (g *Graph) DOT() string {
	var b strings.Builder
	b.WriteString("digraph terrane {\n")
	b.WriteString("  rankdir=LR;\n")

	aliases := make(map[string]string, g.topo.Len())
	for i, n := range g.topo.Nodes() {
		alias := fmt.Sprintf("n%d", i)
		aliases[n.ID.String()] = alias
		label := escapeDOT(n.ID.String()) + "\\n(" + escapeDOT(string(n.Kind)) + ")"
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\"];\n", alias, label))
	}
	for _, n := range g.topo.Nodes() {
		from := aliases[n.ID.String()]
		for _, dep := range g.deps[n.ID] {
			b.WriteString(fmt.Sprintf("  %s -> %s;\n", from, aliases[dep.String()]))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}
