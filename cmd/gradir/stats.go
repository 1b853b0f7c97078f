package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/DuckSoft/gradir/internal/driver"
)

// renderStats formats the per-pass stats as a small table, one section per
// optimized graph.
func renderStats(stats []driver.GraphStats, color bool) string {
	graphStyle := lipgloss.NewStyle()
	headerStyle := lipgloss.NewStyle()
	mutedStyle := lipgloss.NewStyle()
	if color {
		graphStyle = graphStyle.Foreground(lipgloss.Color("6")).Bold(true)
		headerStyle = headerStyle.Bold(true)
		mutedStyle = mutedStyle.Foreground(lipgloss.Color("8"))
	}

	var sb strings.Builder
	for _, gs := range stats {
		fmt.Fprintf(&sb, "%s\n", graphStyle.Render(gs.Graph))
		fmt.Fprintf(&sb, "  %s %s %s %s\n",
			headerStyle.Render(fmt.Sprintf("%-22s", "pass")),
			headerStyle.Render(fmt.Sprintf("%7s", "before")),
			headerStyle.Render(fmt.Sprintf("%7s", "after")),
			headerStyle.Render(fmt.Sprintf("%10s", "time")))
		for _, ps := range gs.Passes {
			fmt.Fprintf(&sb, "  %-22s %7d %7d %s\n",
				ps.Pass, ps.NodesBefore, ps.NodesAfter,
				mutedStyle.Render(fmt.Sprintf("%10s", ps.Duration.Round(time.Microsecond))))
		}
	}
	return sb.String()
}
