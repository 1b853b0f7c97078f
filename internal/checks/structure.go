package checks

import (
	"fmt"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/ops"
)

// GraphChecker verifies that a graph obeys the composition discipline the
// optimizer relies on: values are defined before use and within scope,
// node arities match their kinds, region outputs correspond to body yields,
// and regions do not nest.
type GraphChecker struct {
	graph  *ir.Graph
	scope  map[*ir.Value]bool
	errors []error
}

func NewGraphChecker(g *ir.Graph) *GraphChecker {
	return &GraphChecker{
		graph:  g,
		scope:  make(map[*ir.Value]bool),
		errors: []error{},
	}
}

func (c *GraphChecker) Success() bool {
	return len(c.errors) == 0
}

func (c *GraphChecker) Errors() []error {
	return c.errors
}

func (c *GraphChecker) Check() {
	for _, in := range c.graph.Inputs() {
		c.scope[in] = true
	}
	c.checkBlock(c.graph.Block(), false)
}

func (c *GraphChecker) checkBlock(b *ir.Block, inRegion bool) {
	var defined []*ir.Value
	for _, n := range b.Nodes() {
		c.checkOperands(n)
		c.checkArity(n)
		if n.Kind() == ir.KindGradOf {
			if inRegion {
				c.errorf("%s contains a nested gradient region", describeNode(b.Owner()))
			} else {
				c.checkBlock(n.Body(), true)
			}
		}
		for _, o := range n.Outputs() {
			c.scope[o] = true
			defined = append(defined, o)
		}
	}
	c.checkOperands(b.Term())
	for _, v := range defined {
		delete(c.scope, v)
	}
}

func (c *GraphChecker) checkOperands(n *ir.Node) {
	for _, in := range n.Inputs() {
		if !c.scope[in] {
			c.errorf("%s reads %%%s outside of its scope", describeNode(n), in.Name())
		}
	}
}

func (c *GraphChecker) checkArity(n *ir.Node) {
	switch n.Kind() {
	case ir.KindAutogradAdd:
		if len(n.Inputs()) != 2 {
			c.errorf("%s takes 2 operands, got %d", describeNode(n), len(n.Inputs()))
		}
		if len(n.Outputs()) != 1 {
			c.errorf("%s produces 1 value, got %d", describeNode(n), len(n.Outputs()))
		}
	case ir.KindAutogradZero:
		if len(n.Inputs()) != 0 {
			c.errorf("%s takes no operands, got %d", describeNode(n), len(n.Inputs()))
		}
		if len(n.Outputs()) != 1 {
			c.errorf("%s produces 1 value, got %d", describeNode(n), len(n.Outputs()))
		}
	case ir.KindGradOf:
		if len(n.Outputs()) != len(n.Body().Outputs()) {
			c.errorf("%s defines %d outputs but its body yields %d values",
				describeNode(n), len(n.Outputs()), len(n.Body().Outputs()))
		}
	case ir.KindOp:
		info, known := ops.Lookup(n.Op())
		if !known {
			return
		}
		if info.Arity >= 0 && len(n.Inputs()) != info.Arity {
			c.errorf("%s takes %d operands, got %d", describeNode(n), info.Arity, len(n.Inputs()))
		}
		if info.Results >= 0 && len(n.Outputs()) != info.Results {
			c.errorf("%s produces %d values, got %d", describeNode(n), info.Results, len(n.Outputs()))
		}
	}
}

func (c *GraphChecker) errorf(format string, args ...any) {
	prefix := fmt.Sprintf("graph %s: ", c.graph.Name)
	c.errors = append(c.errors, fmt.Errorf(prefix+format, args...))
}

func describeNode(n *ir.Node) string {
	name := n.Kind().String()
	if n.Kind() == ir.KindOp {
		name = n.Op()
	}
	if n.Kind() == ir.KindReturn {
		if n.Block() != nil && n.Block().Owner() != nil {
			name = "yield"
		}
		return name
	}
	if len(n.Outputs()) > 0 {
		return fmt.Sprintf("%s (%%%s)", name, n.Outputs()[0].Name())
	}
	return name
}
