package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"demandexp/internal/admin"
	"demandexp/internal/config"
	"demandexp/internal/emulator"
	"demandexp/internal/experiment"
	"demandexp/internal/logging"
	"demandexp/internal/report"
	"demandexp/internal/scenario"
	"demandexp/internal/traffic"
)

const runLogFile = "run.log"

var (
	runOutputDir string
	runTrials    int
	runSeed      int64
	runTUI       bool
	runAdminAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the known and unknown demand scenarios",
	Long: "run builds the emulated network once per scenario, measures every trial with iperf and writes " +
		"results.txt plus latency and packet loss comparison charts to the output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := requireRoot(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.FromContext(ctx)
		if runTUI {
			// the TUI owns the terminal, so logs go to a file next to the results
			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				return err
			}
			f, err := os.Create(filepath.Join(cfg.OutputDir, runLogFile))
			if err != nil {
				return err
			}
			defer f.Close()
			log = logging.New(logLevel, f)
		}

		writer, cleanup, err := newWriters(cfg, runTUI, isInteractive(), log)
		if err != nil {
			return err
		}
		defer cleanup()

		tool := traffic.NewTool(cfg.Traffic.Tool, cfg.Traffic.Port, cfg.Traffic.Duration.Duration, log)
		exec := emulator.OSExecutor{}
		runner := experiment.NewRunner(cfg, func() experiment.Topology {
			return emulator.New(cfg.Topology, exec, log)
		}, tool, writer, log)

		if runAdminAddr != "" {
			if _, err := admin.NewServer(runner, cfg, log).Start(ctx, runAdminAddr); err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
		}

		sum, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		res, err := report.FromSummary(sum)
		if err != nil {
			return err
		}
		path, err := report.WriteText(cfg.OutputDir, res)
		if err != nil {
			return err
		}
		log.Info("results saved", "path", path)
		charts, err := report.WriteCharts(cfg.OutputDir, res)
		if err != nil {
			return err
		}
		log.Info("graphs saved", "dir", cfg.OutputDir, "files", len(charts))
		return nil
	},
}

// applyRunFlags overrides file values with explicitly set flags and re-validates.
func applyRunFlags(cmd *cobra.Command, cfg *config.ExperimentConfig) error {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = runOutputDir
	}
	if flags.Changed("trials") {
		cfg.Traffic.Trials = runTrials
	}
	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, name := range []string{scenario.KnownName, scenario.UnknownName} {
		if !hasScenario(cfg, name) {
			return fmt.Errorf("%w: the report compares %q and %q scenarios, %q is missing",
				config.ErrInvalid, scenario.KnownName, scenario.UnknownName, name)
		}
	}
	return nil
}

func hasScenario(cfg *config.ExperimentConfig, name string) bool {
	for _, s := range cfg.Scenarios {
		if s.Name == name {
			return true
		}
	}
	return false
}

func init() {
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "experiment_results", "Directory for results.txt and charts")
	runCmd.Flags().IntVar(&runTrials, "trials", 10, "Trials per scenario")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Seed for random demands (0 = time based)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show an interactive progress view")
	runCmd.Flags().StringVar(&runAdminAddr, "admin-addr", "", "Serve run progress over HTTP on this address (e.g. :8080)")
}
