package passes

import (
	"fmt"
	"time"

	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/logging"
)

// Pass is one named graph-to-graph rewrite. Run mutates the graph in place.
type Pass struct {
	Name string
	Run  func(*ir.Graph)
}

// All returns the full pipeline in its canonical order. Zero specialization
// runs first so that dead code elimination can sweep up what it strands.
func All() []Pass {
	return []Pass{
		{Name: "specialize-zeros", Run: SpecializeZeros},
		{Name: "eliminate-dead-code", Run: EliminateDeadCode},
	}
}

// Select resolves a list of pass names, preserving order and repeats.
func Select(names []string) ([]Pass, error) {
	known := make(map[string]Pass)
	for _, p := range All() {
		known[p.Name] = p
	}
	var selected []Pass
	for _, name := range names {
		p, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown pass %q", name)
		}
		selected = append(selected, p)
	}
	return selected, nil
}

// Stats records what one pass did to one graph.
type Stats struct {
	Pass        string
	NodesBefore int
	NodesAfter  int
	Duration    time.Duration
}

// Run applies the passes to the graph in order and reports per-pass stats.
func Run(g *ir.Graph, pipeline []Pass, log *logging.Logger) []Stats {
	stats := make([]Stats, 0, len(pipeline))
	for _, p := range pipeline {
		before := countNodes(g.Block())
		start := time.Now()
		p.Run(g)
		s := Stats{
			Pass:        p.Name,
			NodesBefore: before,
			NodesAfter:  countNodes(g.Block()),
			Duration:    time.Since(start),
		}
		stats = append(stats, s)
		log.Debug("pass applied",
			"pass", s.Pass,
			"nodes_before", s.NodesBefore,
			"nodes_after", s.NodesAfter,
			"duration", s.Duration)
	}
	return stats
}

func countNodes(b *ir.Block) int {
	count := 0
	for _, n := range b.Nodes() {
		count++
		if n.Body() != nil {
			count += countNodes(n.Body())
		}
	}
	return count
}
