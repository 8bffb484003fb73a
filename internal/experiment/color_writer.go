// ColorWriter prints human-friendly, colorized trial lines.
package experiment

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
)

// lossWarnPct is the loss above which a trial is highlighted.
const lossWarnPct = 1.0

// ColorWriter prints one line per trial and a table per scenario.
type ColorWriter struct {
	out io.Writer
}

// NewColorWriter creates a ColorWriter writing to os.Stdout.
func NewColorWriter() *ColorWriter {
	return &ColorWriter{out: os.Stdout}
}

// WriteTrial implements TrialWriter.
func (w *ColorWriter) WriteTrial(row TrialRow) error {
	status := okStyle.Render("ok")
	switch {
	case row.Failed:
		status = failStyle.Render("FAILED(" + row.Reason + ")")
	case row.LossPct > lossWarnPct:
		status = warnStyle.Render("lossy")
	}
	_, err := fmt.Fprintf(w.out, "%s %s demand=%dM latency=%.3fms loss=%.2f%% %s\n",
		dimStyle.Render(row.Timestamp.Format("15:04:05")),
		headingStyle.Render(fmt.Sprintf("[%s %d/%d]", row.Scenario, row.Trial, row.Trials)),
		row.DemandMbps, row.LatencyMs, row.LossPct, status)
	return err
}

// WriteScenario prints the per-trial table and averages of a scenario.
func (w *ColorWriter) WriteScenario(res ScenarioResult) error {
	fmt.Fprintln(w.out, headingStyle.Render(res.Title()+" Demands"))
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Trial\tDemand (Mbps)\tLatency (ms)\tLoss (%%)\n")
	for i := range res.Demands {
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.2f\n", i+1, res.Demands[i], res.Latencies[i], res.Losses[i])
	}
	fmt.Fprintf(tw, "avg\t\t%.3f\t%.2f\n", res.AvgLatency, res.AvgLoss)
	return tw.Flush()
}
