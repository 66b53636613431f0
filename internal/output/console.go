// Package output renders run summaries on the console.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wesleyorama2/stampede/internal/report"
)

// SummaryPrinter formats the end-of-run summary for a terminal.
type SummaryPrinter struct {
	Writer  io.Writer
	NoColor bool
	Quiet   bool
}

// NewSummaryPrinter creates a printer writing to w. Colors are disabled
// automatically when w is not a terminal.
func NewSummaryPrinter(w io.Writer, noColor bool) *SummaryPrinter {
	if w == nil {
		w = os.Stdout
	}
	if !noColor {
		noColor = !isTerminal(w)
	}
	return &SummaryPrinter{Writer: w, NoColor: noColor}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print writes the run summary.
func (p *SummaryPrinter) Print(doc *report.Document) {
	if doc == nil {
		return
	}

	bold := p.style(color.Bold)
	dim := p.style(color.Faint)

	line := strings.Repeat("━", 56)
	fmt.Fprintln(p.Writer, line)
	fmt.Fprintf(p.Writer, "%s  %s\n", bold.Sprint(doc.Plan), dim.Sprintf("run %s", doc.RunID))
	fmt.Fprintln(p.Writer, line)

	for _, exec := range doc.Executors {
		fmt.Fprintf(p.Writer, "  %-24s %-14s %s\n",
			exec.ID,
			dim.Sprint(exec.Type),
			p.stateLabel(exec.State))
	}

	if m := doc.Metrics; m != nil && m.Overall != nil {
		o := m.Overall
		fmt.Fprintln(p.Writer)
		fmt.Fprintf(p.Writer, "  Duration:    %s\n", formatDuration(doc.Duration))
		fmt.Fprintf(p.Writer, "  Requests:    %d\n", o.Requests)
		fmt.Fprintf(p.Writer, "  Errors:      %d (%.1f%%)\n", o.Errors, o.ErrorRate*100)
		if o.Throughput > 0 {
			fmt.Fprintf(p.Writer, "  Throughput:  %.1f req/s\n", o.Throughput)
		}
		if o.Latency.Count > 0 {
			fmt.Fprintf(p.Writer, "  Latency:     p50=%s p95=%s p99=%s max=%s\n",
				formatDuration(o.Latency.P50), formatDuration(o.Latency.P95),
				formatDuration(o.Latency.P99), formatDuration(o.Latency.Max))
		}
	}

	if !p.Quiet {
		p.printDiagnostics(doc)
	}

	fmt.Fprintln(p.Writer)
	if doc.Success {
		fmt.Fprintf(p.Writer, "  %s\n", p.style(color.FgGreen, color.Bold).Sprint("✓ Run passed"))
	} else {
		fmt.Fprintf(p.Writer, "  %s\n", p.style(color.FgRed, color.Bold).Sprint("✗ Run failed"))
	}
	fmt.Fprintln(p.Writer, line)
}

// printDiagnostics shows failure context collected from executors.
func (p *SummaryPrinter) printDiagnostics(doc *report.Document) {
	dim := p.style(color.Faint)
	for _, exec := range doc.Executors {
		if exec.Error == "" && len(exec.Diagnostics) == 0 {
			continue
		}
		fmt.Fprintln(p.Writer)
		fmt.Fprintf(p.Writer, "  %s\n", p.style(color.FgYellow).Sprintf("%s:", exec.ID))
		if exec.Error != "" {
			fmt.Fprintf(p.Writer, "    %s\n", exec.Error)
		}
		for _, d := range exec.Diagnostics {
			for _, ln := range strings.Split(strings.TrimRight(d, "\n"), "\n") {
				fmt.Fprintf(p.Writer, "    %s\n", dim.Sprint(ln))
			}
		}
	}
}

func (p *SummaryPrinter) stateLabel(state string) string {
	switch state {
	case "completed":
		return p.style(color.FgGreen).Sprint(state)
	case "failed", "timed-out":
		return p.style(color.FgRed).Sprint(state)
	case "stopped":
		return p.style(color.FgYellow).Sprint(state)
	default:
		return state
	}
}

func (p *SummaryPrinter) style(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.NoColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", mins, secs)
}
