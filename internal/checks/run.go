package checks

import "github.com/DuckSoft/gradir/internal/ir"

// Run verifies the structural discipline of every graph in the module.
func Run(m *ir.Module) []error {
	errors := []error{}
	for _, g := range m.Graphs {
		errors = append(errors, RunGraph(g)...)
	}
	return errors
}

// RunGraph verifies a single graph.
func RunGraph(g *ir.Graph) []error {
	checker := NewGraphChecker(g)
	checker.Check()
	return checker.Errors()
}
