// Package console renders transfer progress and history for the terminal,
// standing in for a graphical front end.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"filecourier/internal/history"
)

// update carries one progress sample from the transfer goroutine to the
// render loop.
type update struct {
	percent     int
	transferred int64
	total       int64
}

// Reporter renders a progress bar off the transfer goroutine. Progress
// pushes samples into a buffered channel and a render goroutine drains
// them, so a slow terminal never stalls the transfer loop.
type Reporter struct {
	out     io.Writer
	label   string
	show    bool
	updates chan update
	done    chan struct{}
}

// NewReporter creates a reporter writing to stdout and starts its render
// loop. Pass show=false to keep the transfer silent while still draining
// updates.
func NewReporter(label string, show bool) *Reporter {
	return newReporter(os.Stdout, label, show)
}

func newReporter(out io.Writer, label string, show bool) *Reporter {
	r := &Reporter{
		out:     out,
		label:   label,
		show:    show,
		updates: make(chan update, 64),
		done:    make(chan struct{}),
	}
	go r.renderLoop()
	return r
}

// Progress is the transfer callback. It never blocks: when the render
// loop falls behind, intermediate samples are dropped.
func (r *Reporter) Progress(percent int, transferred, total int64) {
	select {
	case r.updates <- update{percent, transferred, total}:
	default:
	}
}

// Stop drains queued samples, finishes the bar line and stops the render
// loop. Progress must not be called after Stop.
func (r *Reporter) Stop() {
	close(r.updates)
	<-r.done
}

func (r *Reporter) renderLoop() {
	defer close(r.done)

	rendered := false
	for u := range r.updates {
		if r.show {
			r.render(u)
			rendered = true
		}
	}
	if rendered {
		fmt.Fprintln(r.out)
	}
}

// render draws the bar in place. Overshoot past 100% keeps the bar full
// while the raw numbers stay visible.
func (r *Reporter) render(u update) {
	const barWidth = 30

	filled := u.percent
	if filled > 100 {
		filled = 100
	}
	if filled < 0 {
		filled = 0
	}
	completedWidth := barWidth * filled / 100
	bar := strings.Repeat("█", completedWidth) + strings.Repeat("░", barWidth-completedWidth)

	fmt.Fprintf(r.out, "\r[%s] %3d%% (%s/%s) %s",
		bar, u.percent, FormatSize(u.transferred), FormatSize(u.total), r.label)
}

// PrintStatus writes the colored outcome line for a finished transfer.
func PrintStatus(w io.Writer, fileName string, status history.Status) {
	fmt.Fprintf(w, "%s: %s\n", fileName, colorize(status))
}

// PrintHistory renders ledger records as an aligned table, oldest first.
func PrintHistory(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No transfers recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFILE\tSIZE\tPEER\tSTATUS")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.Timestamp.Format(history.TimeFormat),
			rec.FileName,
			FormatSize(rec.Size),
			rec.Peer,
			colorize(rec.Status))
	}
	_ = tw.Flush()
}

// colorize maps the status state to its display color: green for
// complete, yellow for a short transfer, red for failure.
func colorize(status history.Status) string {
	text := status.String()
	switch status.State {
	case history.StateComplete:
		return color.GreenString(text)
	case history.StateIncomplete:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

// FormatSize renders a byte count in 1024-based human units.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}
