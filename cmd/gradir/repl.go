package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/DuckSoft/gradir/internal/checks"
	"github.com/DuckSoft/gradir/internal/ir"
	"github.com/DuckSoft/gradir/internal/lexer"
	"github.com/DuckSoft/gradir/internal/parser"
	"github.com/DuckSoft/gradir/internal/passes"
)

const historyFile = ".gradir_history"

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactively enter, verify and optimize graphs",
	Long: `Start an interactive session. Enter a graph to make it the current
graph, then use commands to inspect it:

  :print    print the current graph in canonical form
  :verify   check the current graph for structural violations
  :opt      run the optimization passes over the current graph
  :help     show this list
  :quit     leave the session`,
	Args: cobra.NoArgs,
}

func init() {
	replCmd.RunE = runRepl
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	pipeline := passes.All()
	if len(cfg.Opt.Passes) > 0 {
		pipeline, err = passes.Select(cfg.Opt.Passes)
		if err != nil {
			return err
		}
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	var current *ir.Graph
	for {
		src, ok := readSource(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			switch trimmed {
			case ":quit", ":q":
				return nil
			case ":help":
				fmt.Println(replCmd.Long)
			case ":print":
				if current == nil {
					fmt.Println("no graph entered yet")
					continue
				}
				fmt.Print(current.String())
			case ":verify":
				if current == nil {
					fmt.Println("no graph entered yet")
					continue
				}
				errs := checks.RunGraph(current)
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, e)
				}
				if len(errs) == 0 {
					fmt.Println("ok")
				}
			case ":opt":
				if current == nil {
					fmt.Println("no graph entered yet")
					continue
				}
				if errs := checks.RunGraph(current); len(errs) > 0 {
					for _, e := range errs {
						fmt.Fprintln(os.Stderr, e)
					}
					continue
				}
				passes.Run(current, pipeline, log)
				fmt.Print(current.String())
			default:
				fmt.Println("unknown command, type :help for the list")
			}
			continue
		}

		g, err := parser.New(lexer.New(strings.NewReader(src), "repl")).ParseGraph()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		current = g
		fmt.Print(current.String())
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
	}
}

// readSource reads one command or one graph. Graphs span lines, so input
// continues until the braces balance.
func readSource(ln *liner.State) (string, bool) {
	var b strings.Builder
	depth := 0
	for {
		prompt := "gradir> "
		if b.Len() > 0 {
			prompt = "   ...> "
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, ":") {
				return trimmed, true
			}
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		depth += braceDelta(line)
		if depth <= 0 {
			return b.String(), true
		}
	}
}

// braceDelta counts the brace nesting change of one line, ignoring comments.
func braceDelta(line string) int {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.Count(line, "{") - strings.Count(line, "}")
}
