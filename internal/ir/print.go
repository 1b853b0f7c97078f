package ir

import (
	"fmt"
	"io"
	"strings"
)

// Print writes the module in its textual form, one graph per section.
func (m *Module) Print(w io.Writer) {
	for i, g := range m.Graphs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		g.Print(w)
	}
}

func (m *Module) String() string {
	var sb strings.Builder
	m.Print(&sb)
	return sb.String()
}

// Print writes the graph in its textual form. The output parses back into
// an equivalent graph.
func (g *Graph) Print(w io.Writer) {
	params := make([]string, len(g.inputs))
	for i, in := range g.inputs {
		params[i] = fmt.Sprintf("%%%s: %s", in.name, in.typ)
	}
	fmt.Fprintf(w, "graph %s(%s) {\n", g.Name, strings.Join(params, ", "))
	printBlock(w, g.block, 1)
	fmt.Fprintln(w, "}")
}

func (g *Graph) String() string {
	var sb strings.Builder
	g.Print(&sb)
	return sb.String()
}

func printBlock(w io.Writer, b *Block, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range b.nodes {
		fmt.Fprintf(w, "%s%s", indent, formatNode(n))
		if n.kind == KindGradOf {
			fmt.Fprintln(w, " {")
			printBlock(w, n.body, depth+1)
			fmt.Fprintf(w, "%s}\n", indent)
		} else {
			fmt.Fprintln(w)
		}
	}
	keyword := "return"
	if b.owner != nil {
		keyword = "yield"
	}
	if outs := b.Outputs(); len(outs) > 0 {
		fmt.Fprintf(w, "%s%s %s\n", indent, keyword, formatValues(outs))
	} else {
		fmt.Fprintf(w, "%s%s\n", indent, keyword)
	}
}

func formatNode(n *Node) string {
	var sb strings.Builder
	if len(n.outputs) > 0 {
		sb.WriteString(formatValues(n.outputs))
		sb.WriteString(" = ")
	}
	name := n.kind.String()
	if n.kind == KindOp {
		name = n.op
	}
	fmt.Fprintf(&sb, "%s(%s)", name, formatValues(n.inputs))
	return sb.String()
}

func formatValues(values []*Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "%" + v.name
	}
	return strings.Join(parts, ", ")
}
