package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"demandexp/internal/report"
)

var (
	renderInput     string
	renderOutputDir string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render comparison charts from an existing results file",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := renderInput
		if input == "" {
			input = filepath.Join(renderOutputDir, report.ResultsFile)
		}
		res, err := report.ReadFile(input)
		if err != nil {
			return fmt.Errorf("read %s: %w", input, err)
		}
		charts, err := report.WriteCharts(renderOutputDir, res)
		if err != nil {
			return err
		}
		for _, c := range charts {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderInput, "input", "", "Path to results.txt (default <output-dir>/results.txt)")
	renderCmd.Flags().StringVar(&renderOutputDir, "output-dir", "experiment_results", "Directory for the charts")
}
