package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/DuckSoft/gradir/internal/driver"
	"github.com/DuckSoft/gradir/internal/parser"
)

var printCmd = &cobra.Command{
	Use:   "print [flags] <input.gir>",
	Short: "Parse a source file and print it in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrint,
}

var printOutput string

func init() {
	printCmd.Flags().StringVarP(&printOutput, "output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(printCmd)
}

func runPrint(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := parser.Parse(f, args[0])
	if err != nil {
		return err
	}
	return writeModule(&driver.Result{Module: m}, printOutput)
}
