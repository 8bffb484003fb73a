package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"demandexp/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render a Grafana dashboard for trials exported to GreptimeDB",
	Long: "dashboard writes Grafana dashboard JSON querying the GreptimeDB trial table. " +
		"GREPTIMEDB_DATASOURCE_UID selects the datasource and GREPTIMEDB_TABLE the table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := dashboard.Render(dashboardOut, dashboard.Options{Table: os.Getenv("GREPTIMEDB_TABLE")})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory for dashboard JSON")
}
