package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"demandexp/internal/config"
	"demandexp/internal/logging"
)

var (
	logLevel   string
	configPath string
	schemaPath string
)

var rootCmd = &cobra.Command{
	Use:   "demandexp",
	Short: "Known vs unknown traffic demand experiment",
	Long: "demandexp emulates a two-host network with Linux namespaces, drives UDP traffic through it with iperf " +
		"and compares latency and packet loss between fixed and random traffic demands.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log := logging.New(logLevel, os.Stderr)
		cmd.SetContext(logging.NewContext(cmd.Context(), log))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to experiment configuration (YAML or TOML); built-in defaults when empty")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file; embedded schema when empty")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadConfig reads the configuration file, or returns the reference experiment when path is empty.
func loadConfig(path, schema string) (*config.ExperimentConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path, schema)
}

var errNotRoot = errors.New("network emulation requires root privileges")

func requireRoot() error {
	if os.Geteuid() != 0 {
		return errNotRoot
	}
	return nil
}
