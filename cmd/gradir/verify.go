package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DuckSoft/gradir/internal/checks"
	"github.com/DuckSoft/gradir/internal/parser"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <input.gir>",
	Short: "Check a source file for structural violations",
	Long: `Parse a source file and verify the structure the optimizer relies on:
values are defined before use and within scope, node arities match their
kinds, region outputs correspond to body yields, and gradient regions do
not nest. Every violation is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := parser.Parse(f, args[0])
	if err != nil {
		return err
	}

	errs := checks.Run(m)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d violations", len(errs))
	}

	fmt.Printf("%s: %d graphs ok\n", args[0], len(m.Graphs))
	return nil
}
