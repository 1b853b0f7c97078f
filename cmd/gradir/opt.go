package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DuckSoft/gradir/internal/driver"
)

var optCmd = &cobra.Command{
	Use:   "opt [flags] <input.gir>",
	Short: "Optimize the graphs in a source file",
	Long: `Parse a source file, verify it and run the optimization passes over
its graphs. The optimized module is written to the output file, "-" for
standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpt,
}

var (
	optOutput string
	optGraphs string
	optWatch  bool
	optStats  bool
)

func init() {
	optCmd.Flags().StringVarP(&optOutput, "output", "o", "-", "output file, - for stdout")
	optCmd.Flags().StringVar(&optGraphs, "graphs", "", "only optimize graphs whose name matches this pattern")
	optCmd.Flags().StringSlice("passes", nil, "passes to run, in order")
	optCmd.Flags().Int("jobs", 0, "number of graphs optimized concurrently, 0 for one per CPU")
	optCmd.Flags().BoolVar(&optWatch, "watch", false, "reprocess the input whenever it changes")
	optCmd.Flags().BoolVar(&optStats, "stats", false, "report per-pass stats on stderr")

	_ = viper.BindPFlag("opt.passes", optCmd.Flags().Lookup("passes"))
	_ = viper.BindPFlag("opt.jobs", optCmd.Flags().Lookup("jobs"))

	rootCmd.AddCommand(optCmd)
}

func runOpt(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := driver.New(cfg, log, optGraphs)
	if err != nil {
		return err
	}
	input := args[0]

	process := func(ctx context.Context) error {
		res, err := d.ProcessFile(ctx, input)
		if err != nil {
			return err
		}
		if err := writeModule(res, optOutput); err != nil {
			return err
		}
		if optStats {
			fmt.Fprint(os.Stderr, renderStats(res.Stats, cfg.Output.Color))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if optWatch {
		w := driver.NewWatcher(log, cfg.Watch.Debounce())
		if err := w.Watch(ctx, input, process); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	return process(ctx)
}

// writeModule writes the optimized module to path, "-" meaning stdout.
func writeModule(res *driver.Result, path string) error {
	if path == "-" {
		res.Module.Print(os.Stdout)
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	res.Module.Print(f)
	return f.Close()
}
