package ir

import (
	"fmt"
	"slices"

	"github.com/DuckSoft/gradir/internal/types"
)

/*
Intermediate representation for gradient computations. A Module holds one or
more Graphs. A Graph holds named input values and a primary Block. A Block is
an ordered sequence of nodes plus a terminator node whose inputs are the
block's designated outputs. Values are SSA: each one is defined exactly once,
either by the graph (as an input) or by a single node, and it tracks its uses.

Node kinds:
 * GradOf(g0, g1, ...) { body } - guarded region over incoming gradients.
   The nested block computes the outgoing gradients and may read any value
   in scope; its terminator yields the region's outputs.
 * AutogradAdd(a, b) - addition that tolerates a structural zero in either
   operand at runtime.
 * AutogradZero() - literal structural zero.
 * Op name(args...) - any other operation; opaque to the optimizer.
 * Return - block terminator. Spelled "return" in the primary block and
   "yield" in region bodies. Never appears in a block's node list.

All nodes created in a graph live in an append-only arena and keep their
identity for the graph's lifetime; placing, moving, or removing a node only
changes block membership.
*/

type Kind int

const (
	KindOp Kind = iota
	KindGradOf
	KindAutogradAdd
	KindAutogradZero
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindOp:
		return "op"
	case KindGradOf:
		return "grad_of"
	case KindAutogradAdd:
		return "autograd_add"
	case KindAutogradZero:
		return "autograd_zero"
	case KindReturn:
		return "return"
	}
	panic(fmt.Sprintf("invalid node kind: %d", int(k)))
}

// Module is a collection of graphs, typically parsed from one source file.
type Module struct {
	Graphs []*Graph
}

// Graph is one gradient computation: named inputs plus a primary block.
type Graph struct {
	Name string

	inputs  []*Value
	block   *Block
	arena   []*Node
	names   map[string]*Value
	nameSeq int
}

func NewGraph(name string) *Graph {
	g := &Graph{Name: name, names: make(map[string]*Value)}
	g.block = newBlock(g, nil)
	return g
}

func (g *Graph) Inputs() []*Value {
	return g.inputs
}

func (g *Graph) Block() *Block {
	return g.block
}

// Nodes returns every node ever created in the graph, including destroyed
// ones, in creation order.
func (g *Graph) Nodes() []*Node {
	return g.arena
}

// AddInput appends a graph input value. An empty name gets a generated one.
func (g *Graph) AddInput(name string, typ types.Type) *Value {
	v := g.newValue(name, typ, nil)
	g.inputs = append(g.inputs, v)
	return v
}

// FindValue returns the value with the given name, or nil.
func (g *Graph) FindValue(name string) *Value {
	return g.names[name]
}

// NewNode creates a node of the given kind reading the given inputs. The
// node belongs to the graph but to no block until it is appended, inserted,
// or moved somewhere. GradOf nodes get an empty body block.
func (g *Graph) NewNode(kind Kind, inputs ...*Value) *Node {
	n := &Node{id: len(g.arena), kind: kind, graph: g}
	g.arena = append(g.arena, n)
	for _, in := range inputs {
		n.AddInput(in)
	}
	if kind == KindGradOf {
		n.body = newBlock(g, n)
	}
	return n
}

// NewOp creates an opaque operation node.
func (g *Graph) NewOp(name string, inputs ...*Value) *Node {
	n := g.NewNode(KindOp, inputs...)
	n.op = name
	return n
}

// NewZero creates a zero-literal node with a single output typed as a known
// structural zero.
func (g *Graph) NewZero() *Node {
	n := g.NewNode(KindAutogradZero)
	n.AddOutput(types.ZeroTensor)
	return n
}

func (g *Graph) newValue(name string, typ types.Type, def *Node) *Value {
	if name == "" {
		name = g.freshName()
	} else if g.names[name] != nil {
		panic(fmt.Sprintf("duplicate value name %%%s in graph %s", name, g.Name))
	}
	v := &Value{name: name, typ: typ, def: def, graph: g}
	g.names[name] = v
	return v
}

func (g *Graph) freshName() string {
	for {
		name := fmt.Sprintf("t%d", g.nameSeq)
		g.nameSeq++
		if g.names[name] == nil {
			return name
		}
	}
}

// Value is a single SSA definition.
type Value struct {
	name  string
	typ   types.Type
	def   *Node // defining node; nil for graph inputs
	graph *Graph
	uses  []Use
}

// Use is one read of a value: the consuming node and the operand position.
// Reads by a block's terminator (return or yield) are uses like any other.
type Use struct {
	Node  *Node
	Index int
}

func (v *Value) Name() string {
	return v.name
}

func (v *Value) Type() types.Type {
	return v.typ
}

// Node returns the defining node, or nil for graph inputs.
func (v *Value) Node() *Node {
	return v.def
}

func (v *Value) Graph() *Graph {
	return v.graph
}

func (v *Value) Uses() []Use {
	return v.uses
}

// ReplaceAllUsesWith redirects every use of v to repl.
func (v *Value) ReplaceAllUsesWith(repl *Value) {
	if repl == v {
		return
	}
	if repl.graph != v.graph {
		panic(fmt.Sprintf("value %%%s belongs to a different graph", repl.name))
	}
	for _, u := range v.uses {
		u.Node.inputs[u.Index] = repl
		repl.uses = append(repl.uses, u)
	}
	v.uses = nil
}

func (v *Value) removeUse(n *Node, index int) {
	for i, u := range v.uses {
		if u.Node == n && u.Index == index {
			v.uses = slices.Delete(v.uses, i, i+1)
			return
		}
	}
	panic(fmt.Sprintf("use of %%%s by node %d not found", v.name, n.id))
}

// Node is one operation.
type Node struct {
	id      int
	kind    Kind
	op      string // operation name, KindOp only
	graph   *Graph
	block   *Block // containing block; nil while unplaced
	inputs  []*Value
	outputs []*Value
	body    *Block // nested block, KindGradOf only
	dead    bool
}

func (n *Node) ID() int {
	return n.id
}

func (n *Node) Kind() Kind {
	return n.kind
}

// Op returns the operation name for KindOp nodes and "" otherwise.
func (n *Node) Op() string {
	return n.op
}

func (n *Node) Graph() *Graph {
	return n.graph
}

// Block returns the containing block, or nil while the node is unplaced.
func (n *Node) Block() *Block {
	return n.block
}

func (n *Node) Inputs() []*Value {
	return n.inputs
}

func (n *Node) Outputs() []*Value {
	return n.outputs
}

// Body returns the nested block for GradOf nodes and nil otherwise.
func (n *Node) Body() *Block {
	return n.body
}

func (n *Node) Destroyed() bool {
	return n.dead
}

// AddInput appends an input operand and registers the use.
func (n *Node) AddInput(v *Value) {
	if v.graph != n.graph {
		panic(fmt.Sprintf("value %%%s belongs to a different graph", v.name))
	}
	v.uses = append(v.uses, Use{Node: n, Index: len(n.inputs)})
	n.inputs = append(n.inputs, v)
}

// AddOutput appends an output value with a generated name.
func (n *Node) AddOutput(typ types.Type) *Value {
	v := n.graph.newValue("", typ, n)
	n.outputs = append(n.outputs, v)
	return v
}

// AddNamedOutput appends an output value with the given name. Panics if the
// name is already taken in the graph.
func (n *Node) AddNamedOutput(name string, typ types.Type) *Value {
	v := n.graph.newValue(name, typ, n)
	n.outputs = append(n.outputs, v)
	return v
}

// InsertBefore places an unplaced node immediately before pos.
func (n *Node) InsertBefore(pos *Node) {
	if n.block != nil {
		panic(fmt.Sprintf("node %d is already placed", n.id))
	}
	if pos.block == nil {
		panic(fmt.Sprintf("node %d is not placed", pos.id))
	}
	pos.block.insertAt(pos.block.indexOf(pos), n)
}

// InsertAfter places an unplaced node immediately after pos.
func (n *Node) InsertAfter(pos *Node) {
	if n.block != nil {
		panic(fmt.Sprintf("node %d is already placed", n.id))
	}
	if pos.block == nil {
		panic(fmt.Sprintf("node %d is not placed", pos.id))
	}
	pos.block.insertAt(pos.block.indexOf(pos)+1, n)
}

// MoveBefore removes the node from its current block and re-inserts it
// immediately before pos. pos may live in a different block of the same
// graph; node identity and value uses are unaffected.
func (n *Node) MoveBefore(pos *Node) {
	if n.graph != pos.graph {
		panic(fmt.Sprintf("cannot move node %d to a different graph", n.id))
	}
	if n.block == nil || pos.block == nil {
		panic(fmt.Sprintf("cannot move node %d relative to node %d, both must be placed", n.id, pos.id))
	}
	n.block.removeNode(n)
	pos.block.insertAt(pos.block.indexOf(pos), n)
}

// Destroy removes the node from its block and unregisters its input uses.
// For region nodes the body and everything inside it is destroyed too. All
// outputs must be unused.
func (n *Node) Destroy() {
	if n.dead {
		panic(fmt.Sprintf("node %d destroyed twice", n.id))
	}
	if n.body != nil {
		n.body.term.Destroy()
		for i := len(n.body.nodes) - 1; i >= 0; i-- {
			n.body.nodes[i].Destroy()
		}
		n.body = nil
	}
	for _, o := range n.outputs {
		if len(o.uses) > 0 {
			panic(fmt.Sprintf("destroying node %d while %%%s still has uses", n.id, o.name))
		}
	}
	for i, in := range n.inputs {
		in.removeUse(n, i)
	}
	n.inputs = nil
	if n.block != nil {
		n.block.removeNode(n)
	}
	n.dead = true
}

// Block is an ordered sequence of nodes plus a terminator. The terminator's
// inputs are the block's outputs: the returned values for the primary block,
// the yielded gradients for a region body.
type Block struct {
	graph *Graph
	owner *Node // region node owning this block; nil for the primary block
	nodes []*Node
	term  *Node
}

func newBlock(g *Graph, owner *Node) *Block {
	b := &Block{graph: g, owner: owner}
	t := &Node{id: len(g.arena), kind: KindReturn, graph: g, block: b}
	g.arena = append(g.arena, t)
	b.term = t
	return b
}

func (b *Block) Graph() *Graph {
	return b.graph
}

// Owner returns the region node owning this block, or nil for the primary
// block.
func (b *Block) Owner() *Node {
	return b.owner
}

// Nodes returns the block's nodes in execution order, terminator excluded.
func (b *Block) Nodes() []*Node {
	return b.nodes
}

func (b *Block) Term() *Node {
	return b.term
}

// Outputs returns the block's designated output values.
func (b *Block) Outputs() []*Value {
	return b.term.inputs
}

// AddOutput appends v to the block's outputs.
func (b *Block) AddOutput(v *Value) {
	b.term.AddInput(v)
}

// Append places an unplaced node at the end of the block.
func (b *Block) Append(n *Node) {
	if n.block != nil {
		panic(fmt.Sprintf("node %d is already placed", n.id))
	}
	b.nodes = append(b.nodes, n)
	n.block = b
}

func (b *Block) indexOf(n *Node) int {
	for i, m := range b.nodes {
		if m == n {
			return i
		}
	}
	panic(fmt.Sprintf("node %d not found in its block", n.id))
}

func (b *Block) insertAt(i int, n *Node) {
	b.nodes = slices.Insert(b.nodes, i, n)
	n.block = b
}

func (b *Block) removeNode(n *Node) {
	if n == b.term {
		b.term = nil
		n.block = nil
		return
	}
	i := b.indexOf(n)
	b.nodes = slices.Delete(b.nodes, i, i+1)
	n.block = nil
}
