package ui

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/srodi/proctop/pkg/report"
	"github.com/srodi/proctop/pkg/types"
)

const clearSequence = "\033[H\033[2J"

// TableOptions controls how the terminal view is drawn.
type TableOptions struct {
	Interval    time.Duration
	TopN        int
	HideKernel  bool
	Banner      bool
	Color       bool
	ClearScreen bool
	// BarWidth is the widest usage bar in cells; 0 hides the bars.
	BarWidth int
}

// Table redraws the two rankings as text tables on every tick.
type Table struct {
	out  io.Writer
	opts TableOptions
	log  *zap.Logger
}

// NewTable returns a Table writing to out.
func NewTable(out io.Writer, opts TableOptions, log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	return &Table{out: out, opts: opts, log: log.With(zap.String("component", "ui.Table"))}
}

// OnTick renders both views in one write so the terminal never shows half a frame.
func (t *Table) OnTick(cpuView, memView types.RankedView) {
	var buf bytes.Buffer
	if t.opts.ClearScreen {
		buf.WriteString(clearSequence)
	}
	Render(&buf, cpuView, memView, t.opts)
	if _, err := t.out.Write(buf.Bytes()); err != nil {
		t.log.Warn("writing table", zap.Error(err))
	}
}

// Render writes one frame for the given views.
func Render(buf *bytes.Buffer, cpuView, memView types.RankedView, opts TableOptions) {
	if opts.Banner {
		buf.WriteString(Banner())
	}
	fmt.Fprintf(buf, "proctop (press Ctrl+C to exit)\n")
	fmt.Fprintf(buf, "Updated: %s | Interval: %v | Processes: %d\n",
		cpuView.CapturedAt.Format(time.RFC3339), opts.Interval, cpuView.Total)
	if sys := cpuView.System; sys != nil {
		fmt.Fprintf(buf, "Host: CPU %.1f%% | Memory %.1f%%\n", sys.CPUPercent, sys.MemoryPercent)
	}
	buf.WriteString("\n")

	if focus := report.SelectFocusCandidate(cpuView, memView); focus != nil {
		fmt.Fprintf(buf, "%s (pid %d)\n", highlight("[!] Focus: "+displayName(*focus), opts), focus.PID)
		fmt.Fprintf(buf, "   Reason: %s - %s\n\n", report.Classify(*focus), report.FocusSummary(*focus))
	} else {
		fmt.Fprintf(buf, "[!] No processes matched current filters (topk=%d, hide-kernel=%t)\n\n", opts.TopN, opts.HideKernel)
	}

	fmt.Fprintf(buf, "[Top %d CPU]\n", opts.TopN)
	writeView(buf, cpuView, opts, skyBlue)
	fmt.Fprintf(buf, "\n[Top %d Memory]\n", opts.TopN)
	writeView(buf, memView, opts, mint)
}

func writeView(buf *bytes.Buffer, view types.RankedView, opts TableOptions, barColor string) {
	if len(view.Entries) == 0 {
		fmt.Fprintln(buf, "No processes sampled in this window")
		return
	}
	scale := 0.0
	for _, e := range view.Entries {
		scale = max(scale, view.Metric.Value(e))
	}

	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tCPU(%)\tMEM(%)\tRSS(MB)\tDiag\t")
	for _, e := range view.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.1f\t%s\t%s\n",
			e.PID, displayName(e), e.CPUPercent, e.MemoryPercent,
			float64(e.RSSBytes)/(1024*1024), report.Classify(e),
			bar(view.Metric.Value(e), scale, opts, barColor))
	}
	tw.Flush()
}

// bar draws value relative to scale. The bar sits in the last column so its
// escape codes never skew tabwriter's alignment.
func bar(value, scale float64, opts TableOptions, color string) string {
	if opts.BarWidth <= 0 || scale <= 0 || math.IsNaN(value) {
		return ""
	}
	cells := int(value / scale * float64(opts.BarWidth))
	cells = min(max(cells, 0), opts.BarWidth)
	filled := strings.Repeat("█", cells)
	empty := strings.Repeat("·", opts.BarWidth-cells)
	if !opts.Color {
		return filled + empty
	}
	return color + filled + outlineGray + empty + reset
}

func highlight(s string, opts TableOptions) string {
	if !opts.Color {
		return s
	}
	return bold + bodyAmber + s + reset
}

// displayName falls back to the pid for nameless processes and hides control
// characters a process may put in its own name.
func displayName(s types.ProcessSample) string {
	if s.Name == "" {
		return fmt.Sprintf("pid-%d", s.PID)
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '?'
		}
		return r
	}, s.Name)
}
