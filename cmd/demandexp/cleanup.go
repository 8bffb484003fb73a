package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"demandexp/internal/emulator"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove namespaces and bridges left behind by an aborted run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		if err := requireRoot(); err != nil {
			return err
		}
		removed, err := emulator.Cleanup(cmd.Context(), emulator.OSExecutor{}, cfg.Topology)
		for _, name := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), "removed", name)
		}
		return err
	},
}
