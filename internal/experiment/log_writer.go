package experiment

import (
	"log/slog"
)

// LogWriter reports trials through a structured logger. Raw tool output is logged at debug level.
type LogWriter struct {
	log *slog.Logger
}

// NewLogWriter creates a LogWriter.
func NewLogWriter(log *slog.Logger) *LogWriter {
	return &LogWriter{log: log}
}

// WriteTrial implements TrialWriter.
func (w *LogWriter) WriteTrial(row TrialRow) error {
	attrs := []any{
		"scenario", row.Scenario,
		"trial", row.Trial,
		"demand_mbps", row.DemandMbps,
		"latency_ms", row.LatencyMs,
		"loss_pct", row.LossPct,
	}
	if row.Sent > 0 {
		attrs = append(attrs, "lost", row.Lost, "sent", row.Sent)
	}
	if row.Failed {
		w.log.Warn("trial sample", append(attrs, "reason", row.Reason, "err", row.Err)...)
	} else {
		w.log.Info("trial sample", attrs...)
	}
	if row.Output != "" {
		w.log.Debug("traffic tool output", "scenario", row.Scenario, "trial", row.Trial, "output", row.Output)
	}
	return nil
}

// WriteScenario logs the scenario averages.
func (w *LogWriter) WriteScenario(res ScenarioResult) error {
	w.log.Info("scenario averages",
		"scenario", res.Name,
		"avg_latency_ms", res.AvgLatency,
		"avg_loss_pct", res.AvgLoss,
		"trials", len(res.Latencies),
		"failed", res.Failed,
	)
	return nil
}
