package passes

import (
	"slices"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/ops"
)

// EliminateDeadCode removes nodes whose results are never used, walking each
// block backwards so that removing a use can expose its producers. Impure
// operations and regions containing them are kept even when unused.
func EliminateDeadCode(g *ir.Graph) {
	eliminateInBlock(g.Block())
}

func eliminateInBlock(b *ir.Block) {
	nodes := slices.Clone(b.Nodes())
	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if n.Body() != nil {
			eliminateInBlock(n.Body())
		}
		if isDead(n) {
			n.Destroy()
		}
	}
}

func isDead(n *ir.Node) bool {
	for _, o := range n.Outputs() {
		if len(o.Uses()) > 0 {
			return false
		}
	}
	return pure(n)
}

func pure(n *ir.Node) bool {
	switch n.Kind() {
	case ir.KindOp:
		return ops.Pure(n.Op())
	case ir.KindAutogradAdd, ir.KindAutogradZero:
		return true
	case ir.KindGradOf:
		for _, bn := range n.Body().Nodes() {
			if !pure(bn) {
				return false
			}
		}
		return true
	}
	return false
}
