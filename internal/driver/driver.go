/*
Package driver ties the pipeline together: it parses gradient IR sources,
verifies their structure, runs the optimization passes over every selected
graph and writes the result back out. Graphs are independent, so they are
optimized concurrently, bounded by the configured number of jobs.
*/
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/DuckSoft/gradir/internal/checks"
	"github.com/DuckSoft/gradir/internal/config"
	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/logging"
	"github.com/DuckSoft/gradir/internal/parser"
	"github.com/DuckSoft/gradir/internal/passes"
)

type Driver struct {
	log      *logging.Logger
	pipeline []passes.Pass
	filter   glob.Glob
	jobs     int
}

// New builds a driver from the configuration. graphPattern selects which
// graphs to optimize by name; empty means all of them.
func New(cfg *config.Config, log *logging.Logger, graphPattern string) (*Driver, error) {
	pipeline := passes.All()
	if len(cfg.Opt.Passes) > 0 {
		var err error
		pipeline, err = passes.Select(cfg.Opt.Passes)
		if err != nil {
			return nil, err
		}
	}

	var filter glob.Glob
	if graphPattern != "" {
		var err error
		filter, err = glob.Compile(graphPattern)
		if err != nil {
			return nil, fmt.Errorf("bad graph pattern %q: %w", graphPattern, err)
		}
	}

	jobs := cfg.Opt.Jobs
	if jobs == 0 {
		jobs = runtime.NumCPU()
	}

	return &Driver{
		log:      log,
		pipeline: pipeline,
		filter:   filter,
		jobs:     jobs,
	}, nil
}

// GraphStats holds the per-pass stats for one optimized graph.
type GraphStats struct {
	Graph  string
	Passes []passes.Stats
}

// Result is the outcome of processing one source.
type Result struct {
	Module *ir.Module
	Stats  []GraphStats
}

// Process parses, verifies and optimizes one source. The returned stats
// cover the optimized graphs in module order; graphs excluded by the graph
// pattern stay in the module untouched.
func (d *Driver) Process(ctx context.Context, src io.Reader, filename string) (*Result, error) {
	m, err := parser.Parse(src, filename)
	if err != nil {
		return nil, err
	}
	if err := Verify(m); err != nil {
		return nil, err
	}
	stats, err := d.Optimize(ctx, m)
	if err != nil {
		return nil, err
	}
	return &Result{Module: m, Stats: stats}, nil
}

// ProcessFile is Process reading from a file on disk.
func (d *Driver) ProcessFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return d.Process(ctx, f, path)
}

// Verify reports every structural violation in the module as one error.
func Verify(m *ir.Module) error {
	return errors.Join(checks.Run(m)...)
}

// Optimize runs the configured passes over every selected graph, jobs at a
// time. Each graph is mutated in place by its own worker; graphs never
// share values, so the workers need no locking.
func (d *Driver) Optimize(ctx context.Context, m *ir.Module) ([]GraphStats, error) {
	slots := make([]GraphStats, len(m.Graphs))

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(d.jobs)
	for i, g := range m.Graphs {
		i, g := i, g
		if d.filter != nil && !d.filter.Match(g.Name) {
			d.log.Debug("graph skipped", "graph", g.Name)
			continue
		}
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i] = GraphStats{
				Graph:  g.Name,
				Passes: passes.Run(g, d.pipeline, d.log.WithGraph(g.Name)),
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var stats []GraphStats
	for _, s := range slots {
		if s.Graph != "" {
			stats = append(stats, s)
		}
	}
	return stats, nil
}
