package passes

import (
	"strings"
	"testing"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/parser"
	"github.com/DuckSoft/gradir/internal/types"
)

func parseGraph(t *testing.T, src string) *ir.Graph {
	t.Helper()
	m, err := parser.Parse(strings.NewReader(src), "test.gir")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(m.Graphs) != 1 {
		t.Fatalf("expected a single graph, got %d", len(m.Graphs))
	}
	return m.Graphs[0]
}

func TestSeed(t *testing.T) {
	tests := []struct {
		name     string
		typ      types.Type
		expected zeroness
	}{
		{"zero tensor", types.ZeroTensor, zero},
		{"plain tensor", types.Tensor, nonzero},
		{"nonzero tensor", types.NonzeroTensor, nonzero},
		{"tensor list", types.TensorList, nonzero},
		{"int scalar", types.Int, unknown},
		{"bool scalar", types.Bool, unknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := seed(test.typ); got != test.expected {
				t.Errorf("seed(%s) = %s, expected %s", test.typ, got, test.expected)
			}
		})
	}
}

func TestZeroTableAbsentIsUnknown(t *testing.T) {
	g := ir.NewGraph("f")
	v := g.AddInput("x", types.Tensor)

	state := make(zeroTable)
	if got := state.get(v); got != unknown {
		t.Errorf("absent entry reads as %s, expected unknown", got)
	}

	state[v] = nonzero
	if got := state.get(v); got != nonzero {
		t.Errorf("present entry reads as %s, expected nonzero", got)
	}
}

func TestSpecializeZeros(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name: "collapses region fed only zeros",
			source: `graph f(%dx: tensor<zero>, %dy: tensor<zero>) {
  %a, %b = grad_of(%dx, %dy) {
    %s = add(%dx, %dy)
    yield %s, %dx
  }
  return %a, %b
}
`,
			expected: `graph f(%dx: tensor<zero>, %dy: tensor<zero>) {
  %t0 = autograd_zero()
  return %t0, %t0
}
`,
		},
		{
			name: "collapses region with no inputs",
			source: `graph f() {
  %a = grad_of() {
    %c = rand()
    yield %c
  }
  return %a
}
`,
			expected: `graph f() {
  %t0 = autograd_zero()
  return %t0
}
`,
		},
		{
			name: "splices region with a live input",
			source: `graph f(%x: tensor, %dy: tensor<zero>) {
  %a, %b = grad_of(%x, %dy) {
    %g = mul(%x, %x)
    %h = neg(%g)
    yield %g, %h
  }
  return %a, %b
}
`,
			expected: `graph f(%x: tensor, %dy: tensor<zero>) {
  %g = mul(%x, %x)
  %h = neg(%g)
  return %g, %h
}
`,
		},
		{
			name: "drops add with zero on the left",
			source: `graph f(%a: tensor<zero>, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}
`,
			expected: `graph f(%a: tensor<zero>, %b: tensor) {
  return %b
}
`,
		},
		{
			name: "drops add with zero on the right",
			source: `graph f(%a: tensor, %b: tensor<zero>) {
  %s = autograd_add(%a, %b)
  return %s
}
`,
			expected: `graph f(%a: tensor, %b: tensor<zero>) {
  return %a
}
`,
		},
		{
			name: "promotes add of two live tensors",
			source: `graph f(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}
`,
			expected: `graph f(%a: tensor, %b: tensor) {
  %t0 = add(%a, %b)
  return %t0
}
`,
		},
		{
			name: "keeps add when zeroness is unknown",
			source: `graph f(%a: tensor) {
  %u = rand()
  %s = autograd_add(%a, %u)
  return %s
}
`,
			expected: `graph f(%a: tensor) {
  %u = rand()
  %s = autograd_add(%a, %u)
  return %s
}
`,
		},
		{
			name: "keeps add fed by a scalar input",
			source: `graph f(%a: tensor, %n: int) {
  %s = autograd_add(%a, %n)
  return %s
}
`,
			expected: `graph f(%a: tensor, %n: int) {
  %s = autograd_add(%a, %n)
  return %s
}
`,
		},
		{
			name: "folds zero literal into add",
			source: `graph f(%a: tensor) {
  %z = autograd_zero()
  %s = autograd_add(%z, %a)
  return %s
}
`,
			expected: `graph f(%a: tensor) {
  %z = autograd_zero()
  return %a
}
`,
		},
		{
			name: "leaves spliced results conservative",
			source: `graph backward(%dx: tensor<zero>, %dy: tensor) {
  %a, %b = grad_of(%dx, %dy) {
    %p = mul(%dy, %dy)
    yield %p, %dy
  }
  %z = autograd_zero()
  %s1 = autograd_add(%a, %z)
  %s2 = autograd_add(%s1, %b)
  return %s2
}
`,
			expected: `graph backward(%dx: tensor<zero>, %dy: tensor) {
  %p = mul(%dy, %dy)
  %z = autograd_zero()
  %s2 = autograd_add(%p, %dy)
  return %s2
}
`,
		},
		{
			name: "leaves opaque operations alone",
			source: `graph f(%x: tensor) {
  %y = transpose(%x)
  %w = matmul(%y, %x)
  return %w
}
`,
			expected: `graph f(%x: tensor) {
  %y = transpose(%x)
  %w = matmul(%y, %x)
  return %w
}
`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g := parseGraph(t, test.source)
			SpecializeZeros(g)
			if got := g.String(); got != test.expected {
				t.Errorf("wrong graph after specialization:\n%s\nexpected:\n%s", got, test.expected)
			}
		})
	}
}

func TestSpecializeZerosIdempotent(t *testing.T) {
	sources := []string{
		`graph f(%dx: tensor<zero>, %dy: tensor) {
  %a, %b = grad_of(%dx, %dy) {
    %p = mul(%dy, %dy)
    yield %p, %dy
  }
  %s = autograd_add(%a, %b)
  return %s
}
`,
		`graph f(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}
`,
		`graph f(%dx: tensor<zero>) {
  %a = grad_of(%dx) {
    yield %dx
  }
  return %a
}
`,
	}

	for _, src := range sources {
		g := parseGraph(t, src)
		SpecializeZeros(g)
		first := g.String()
		SpecializeZeros(g)
		if second := g.String(); second != first {
			t.Errorf("second run changed the graph:\n%s\nafter first run:\n%s", second, first)
		}
	}
}

func TestCollapseSharesOneLiteral(t *testing.T) {
	g := parseGraph(t, `graph f(%dx: tensor<zero>) {
  %a, %b = grad_of(%dx, %dx) {
    yield %dx, %dx
  }
  return %a, %b
}
`)
	SpecializeZeros(g)

	if n := len(g.Block().Nodes()); n != 1 {
		t.Fatalf("expected a single node after collapse, got %d", n)
	}
	outs := g.Block().Outputs()
	if outs[0] != outs[1] {
		t.Errorf("collapsed outputs are distinct values %%%s and %%%s", outs[0].Name(), outs[1].Name())
	}
	lit := g.Block().Nodes()[0]
	if lit.Kind() != ir.KindAutogradZero {
		t.Errorf("expected an autograd_zero literal, got %s", lit.Kind())
	}
	if outs[0].Node() != lit {
		t.Errorf("outputs are not wired to the inserted literal")
	}
}

func TestAddRewriteKeepsOperandIdentity(t *testing.T) {
	g := ir.NewGraph("f")
	a := g.AddInput("a", types.ZeroTensor)
	b := g.AddInput("b", types.Tensor)
	n := g.NewNode(ir.KindAutogradAdd, a, b)
	out := n.AddOutput(types.Tensor)
	g.Block().Append(n)
	g.Block().AddOutput(out)

	SpecializeZeros(g)

	if got := g.Block().Outputs()[0]; got != b {
		t.Errorf("rewrite produced %%%s instead of reusing %%%s", got.Name(), b.Name())
	}
	if n := len(g.Block().Nodes()); n != 0 {
		t.Errorf("rewrite left %d nodes behind, expected none", n)
	}
}

func TestPromotionAddsExactlyOneNode(t *testing.T) {
	g := parseGraph(t, `graph f(%a: tensor, %b: tensor) {
  %s = autograd_add(%a, %b)
  return %s
}
`)
	SpecializeZeros(g)

	nodes := g.Block().Nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected a single node after promotion, got %d", len(nodes))
	}
	if nodes[0].Kind() != ir.KindOp || nodes[0].Op() != "add" {
		t.Errorf("expected a plain add, got %s", nodes[0].Kind())
	}
	if ins := nodes[0].Inputs(); ins[0] != g.Inputs()[0] || ins[1] != g.Inputs()[1] {
		t.Errorf("plain add does not read the original operands")
	}
}

func TestSplicePreservesBodyOrder(t *testing.T) {
	g := parseGraph(t, `graph f(%x: tensor) {
  %a = grad_of(%x) {
    %g = mul(%x, %x)
    %h = neg(%g)
    %k = sum(%h)
    yield %k
  }
  return %a
}
`)
	SpecializeZeros(g)

	var got []string
	for _, n := range g.Block().Nodes() {
		got = append(got, n.Op())
	}
	expected := []string{"mul", "neg", "sum"}
	if len(got) != len(expected) {
		t.Fatalf("expected %d nodes after splice, got %v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("spliced nodes out of order: got %v, expected %v", got, expected)
		}
	}
	if out := g.Block().Outputs()[0]; out.Name() != "k" {
		t.Errorf("return reads %%%s, expected %%k", out.Name())
	}
}

func TestSpecializeZerosPanicsOnUnknownRegionInput(t *testing.T) {
	g := parseGraph(t, `graph f(%x: tensor) {
  %u = rand()
  %a = grad_of(%u) {
    %g = mul(%u, %x)
    yield %g
  }
  return %a
}
`)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic for a region input of unknown zeroness")
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "unknown zeroness") {
			t.Errorf("unexpected panic value: %v", r)
		}
	}()
	SpecializeZeros(g)
}
