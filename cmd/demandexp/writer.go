package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"demandexp/internal/config"
	"demandexp/internal/experiment"
)

// newWriters sets up trial writers based on flags and env vars.
// It returns the fan-out writer and a cleanup function to close any resources.
func newWriters(cfg *config.ExperimentConfig, tui, interactive bool, log *slog.Logger) (experiment.TrialWriter, func(), error) {
	cleanup := func() {}
	ws, err := baseWriters(tui, interactive, log)
	if err != nil {
		return nil, nil, err
	}
	if tui {
		tw := experiment.NewTUIWriter(cfg)
		ws = append(ws, tw)
		cleanup = func() { tw.Close() }
	}
	return experiment.NewMultiWriter(ws...), cleanup, nil
}

// baseWriters chooses the console and export writers. The TUI, when enabled, is added by newWriters.
func baseWriters(tui, interactive bool, log *slog.Logger) ([]experiment.TrialWriter, error) {
	var ws []experiment.TrialWriter
	switch {
	case tui || !interactive:
		ws = append(ws, experiment.NewLogWriter(log))
	default:
		ws = append(ws, experiment.NewColorWriter())
	}

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if endpoint == "" {
		return ws, nil
	}
	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	gw, err := experiment.NewGreptimeDBWriter(endpoint, database, os.Getenv("GREPTIMEDB_TABLE"), log)
	if err != nil {
		return nil, err
	}
	log.Info("exporting trials to GreptimeDB", "endpoint", endpoint, "database", database)
	return append(ws, gw), nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
