package main

import (
	"errors"
	"testing"

	"demandexp/internal/config"
)

func TestApplyRunFlags(t *testing.T) {
	t.Cleanup(func() {
		runCmd.Flags().Set("trials", "10")
		runCmd.Flags().Set("seed", "0")
		runCmd.Flags().Set("output-dir", "experiment_results")
		runCmd.Flags().Lookup("trials").Changed = false
		runCmd.Flags().Lookup("seed").Changed = false
		runCmd.Flags().Lookup("output-dir").Changed = false
	})
	cfg := config.Default()
	if err := runCmd.Flags().Set("trials", "3"); err != nil {
		t.Fatal(err)
	}
	if err := runCmd.Flags().Set("seed", "7"); err != nil {
		t.Fatal(err)
	}
	if err := applyRunFlags(runCmd, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Traffic.Trials != 3 || cfg.Seed != 7 {
		t.Fatalf("flags not applied: trials=%d seed=%d", cfg.Traffic.Trials, cfg.Seed)
	}
	if cfg.OutputDir != "experiment_results" {
		t.Fatalf("unchanged flag overrode config: %s", cfg.OutputDir)
	}

	if err := runCmd.Flags().Set("trials", "0"); err != nil {
		t.Fatal(err)
	}
	if err := applyRunFlags(runCmd, config.Default()); err == nil {
		t.Fatalf("expected validation error for zero trials")
	}
}

func TestLoadConfigDefault(t *testing.T) {
	cfg, err := loadConfig("", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Scenarios) != 2 || cfg.Traffic.Trials != 10 {
		t.Fatalf("unexpected default config %+v", cfg)
	}
}

func TestApplyRunFlagsRequiresReportScenarios(t *testing.T) {
	cfg := config.Default()
	cfg.Scenarios = cfg.Scenarios[:1]
	if err := applyRunFlags(runCmd, cfg); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
