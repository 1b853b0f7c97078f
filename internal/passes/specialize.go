package passes

import (
	"fmt"
	"slices"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/symbolic"
	"github.com/DuckSoft/gradir/internal/types"
)

// zeroness is what the optimizer knows about a value. The zero value of the
// type is deliberately the no-information state so that an unclassified
// value can never read as anything stronger.
type zeroness int

const (
	unknown zeroness = iota
	zero
	nonzero
)

func (z zeroness) String() string {
	switch z {
	case unknown:
		return "unknown"
	case zero:
		return "zero"
	case nonzero:
		return "nonzero"
	}
	panic(fmt.Sprintf("invalid zeroness: %d", int(z)))
}

// zeroTable holds the per-value classification for one pass invocation.
type zeroTable map[*ir.Value]zeroness

// get treats absent entries as unknown. Values the scan never classified,
// such as the outputs of spliced region nodes, stay conservative.
func (t zeroTable) get(v *ir.Value) zeroness {
	z, ok := t[v]
	if !ok {
		return unknown
	}
	return z
}

// SpecializeZeros propagates structural-zero information through the graph
// in one forward scan and rewrites what it proves:
//
//   - a gradient region whose incoming gradients are all zero collapses
//     into a single zero literal;
//   - a gradient region with a live input is spliced into the enclosing
//     block and its wrapper removed;
//   - a guarded addition with a zero operand becomes the other operand;
//   - a guarded addition of two known-nonzero values becomes a plain add.
//
// Anything else is left alone. The graph is mutated in place. Panics when a
// live gradient region has an input of unknown zeroness, which indicates
// the graph was built wrong upstream.
func SpecializeZeros(g *ir.Graph) {
	state := make(zeroTable)
	for _, in := range g.Inputs() {
		state[in] = seed(in.Type())
	}

	// The snapshot keeps the scan stable while rules insert, splice and
	// destroy nodes. Nodes a rule creates are classified by that rule and
	// never revisited.
	for _, n := range slices.Clone(g.Block().Nodes()) {
		if n.Destroyed() {
			continue
		}
		switch n.Kind() {
		case ir.KindGradOf:
			specializeRegion(g, n, state)
		case ir.KindAutogradAdd:
			specializeAdd(n, state)
		case ir.KindAutogradZero:
			state[n.Outputs()[0]] = zero
		default:
			for _, o := range n.Outputs() {
				state[o] = unknown
			}
		}
	}
}

// seed classifies a graph input from its declared type.
func seed(t types.Type) zeroness {
	switch typ := t.(type) {
	case *types.TensorType:
		if typ.Zero != nil && *typ.Zero {
			return zero
		}
		return nonzero
	case *types.TensorListType:
		return nonzero
	default:
		return unknown
	}
}

func specializeRegion(g *ir.Graph, n *ir.Node, state zeroTable) {
	allZero := true
	for _, in := range n.Inputs() {
		if state.get(in) != zero {
			allZero = false
			break
		}
	}

	if allZero {
		// Only zeros flow in, so only zeros can flow out. One literal
		// stands in for every output.
		z := g.NewZero()
		z.InsertAfter(n)
		state[z.Outputs()[0]] = zero
		for _, o := range n.Outputs() {
			o.ReplaceAllUsesWith(z.Outputs()[0])
		}
		n.Destroy()
		return
	}

	// A region with a live input must be fully understood before its body
	// can replace it. Regions are built from a closed vocabulary, so an
	// unknown gradient here means the graph was built wrong.
	for _, in := range n.Inputs() {
		if state.get(in) == unknown {
			panic(fmt.Sprintf("graph %s: gradient region input %%%s has unknown zeroness", g.Name, in.Name()))
		}
	}

	body := n.Body()
	for _, bn := range slices.Clone(body.Nodes()) {
		bn.MoveBefore(n)
	}
	bodyOuts := slices.Clone(body.Outputs())
	for i, o := range n.Outputs() {
		o.ReplaceAllUsesWith(bodyOuts[i])
	}
	n.Destroy()
}

func specializeAdd(n *ir.Node, state zeroTable) {
	a := n.Inputs()[0]
	b := n.Inputs()[1]
	out := n.Outputs()[0]

	switch {
	case state.get(a) == zero:
		out.ReplaceAllUsesWith(b)
		n.Destroy()
	case state.get(b) == zero:
		out.ReplaceAllUsesWith(a)
		n.Destroy()
	case state.get(a) == nonzero && state.get(b) == nonzero:
		// Both operands are real tensors, so the guard is dead weight:
		// replace it with an addition later passes can work with.
		sum := symbolic.Add(a, b, n)
		state[sum] = nonzero
		out.ReplaceAllUsesWith(sum)
		n.Destroy()
	default:
		// At least one operand may or may not be a zero at runtime. The
		// guard stays and nothing downstream may assume otherwise.
		state[out] = unknown
	}
}
