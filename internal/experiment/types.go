package experiment

import (
	"strings"
	"time"

	"demandexp/internal/traffic"
)

// TrialRow is one trial as handed to writers.
type TrialRow struct {
	RunID     string
	Scenario  string
	Trial     int // 1-based
	Trials    int
	Timestamp time.Time
	traffic.Sample
}

// ScenarioResult holds the samples and averages of one scenario.
// Demands, Latencies and Losses always have one entry per trial.
type ScenarioResult struct {
	Name       string    `json:"name"`
	Demands    []int     `json:"demands"`
	Latencies  []float64 `json:"latencies_ms"`
	Losses     []float64 `json:"losses_pct"`
	Failed     int       `json:"failed"`
	AvgLatency float64   `json:"avg_latency_ms"`
	AvgLoss    float64   `json:"avg_loss_pct"`
}

// Title returns the display name used in reports and charts ("known" -> "Known").
func (r ScenarioResult) Title() string {
	return Title(r.Name)
}

// Title capitalizes a scenario name for display.
func Title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Summary is the outcome of a full run.
type Summary struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Scenarios []ScenarioResult
}

// Scenario returns the result of the named scenario.
func (s *Summary) Scenario(name string) (ScenarioResult, bool) {
	for _, r := range s.Scenarios {
		if r.Name == name {
			return r, true
		}
	}
	return ScenarioResult{}, false
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Progress is a snapshot of a running experiment.
type Progress struct {
	RunID     string           `json:"run_id"`
	Scenario  string           `json:"scenario"`
	Index     int              `json:"scenario_index"`
	Scenarios int              `json:"scenarios"`
	Trial     int              `json:"trial"`
	Trials    int              `json:"trials"`
	Done      bool             `json:"done"`
	Err       string           `json:"error,omitempty"`
	Completed []ScenarioResult `json:"completed"`
}
