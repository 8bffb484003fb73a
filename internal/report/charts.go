package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	knownColor   = color.RGBA{B: 255, A: 255}
	unknownColor = color.RGBA{R: 255, G: 165, A: 255}
)

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 4 * vg.Inch
)

var barWidth = vg.Points(60)

type chartMetric struct {
	label   string
	known   float64
	unknown float64
}

// ChartFile returns the file name used for a metric chart, e.g. "latency_(ms)_comparison.png".
func ChartFile(metric string) string {
	return strings.ToLower(strings.ReplaceAll(metric, " ", "_")) + "_comparison.png"
}

// WriteCharts renders the latency and packet loss bar charts into dir and returns their paths.
func WriteCharts(dir string, r Results) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	metrics := []chartMetric{
		{label: "Latency (ms)", known: r.Known.LatencyMs, unknown: r.Unknown.LatencyMs},
		{label: "Packet Loss (%)", known: r.Known.LossPct, unknown: r.Unknown.LossPct},
	}
	paths := make([]string, 0, len(metrics))
	for _, m := range metrics {
		p, err := barChart(m)
		if err != nil {
			return paths, fmt.Errorf("chart %s: %w", m.label, err)
		}
		path := filepath.Join(dir, ChartFile(m.label))
		if err := p.Save(chartWidth, chartHeight, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func barChart(m chartMetric) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = m.label + " Comparison"
	p.Y.Label.Text = m.label

	known, err := plotter.NewBarChart(plotter.Values{m.known}, barWidth)
	if err != nil {
		return nil, err
	}
	known.Color = knownColor
	known.LineStyle.Width = 0

	unknown, err := plotter.NewBarChart(plotter.Values{m.unknown}, barWidth)
	if err != nil {
		return nil, err
	}
	unknown.Color = unknownColor
	unknown.LineStyle.Width = 0
	unknown.XMin = 1

	p.Add(known, unknown)
	p.NominalX("Known", "Unknown")
	p.Y.Min = 0
	if p.Y.Max <= 0 {
		p.Y.Max = 1
	}
	return p, nil
}
