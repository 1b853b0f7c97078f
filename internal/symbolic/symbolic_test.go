package symbolic

import (
	"testing"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/types"
)

func TestAdd(t *testing.T) {
	g := ir.NewGraph("main")
	a := g.AddInput("a", types.Tensor)
	b := g.AddInput("b", types.Tensor)

	marker := g.NewOp("sum", a)
	g.Block().Append(marker)
	marker.AddOutput(types.Tensor)

	sum := Add(a, b, marker)

	n := sum.Node()
	if n == nil || n.Kind() != ir.KindOp || n.Op() != "add" {
		t.Fatalf("expected a plain add node")
	}
	if n.Inputs()[0] != a || n.Inputs()[1] != b {
		t.Errorf("unexpected operands")
	}
	if !sum.Type().Equals(types.Tensor) {
		t.Errorf("expected a plain tensor result, got %s", sum.Type())
	}
	nodes := g.Block().Nodes()
	if len(nodes) != 2 || nodes[0] != n || nodes[1] != marker {
		t.Errorf("expected the add to be inserted before the insertion point")
	}
}
