// Package symbolic synthesizes ordinary arithmetic nodes. The optimizer
// calls into it when a guarded operation has been proven unnecessary and a
// plain one can take its place.
package symbolic

import (
	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/types"
)

// Add creates a plain addition computing a + b and inserts it immediately
// before at. The result is an ordinary tensor with no zero information
// attached; later passes may fold or fuse it like any other operation.
func Add(a, b *ir.Value, at *ir.Node) *ir.Value {
	n := at.Graph().NewOp("add", a, b)
	n.InsertBefore(at)
	return n.AddOutput(types.Tensor)
}
