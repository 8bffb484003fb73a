package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"demandexp/internal/emulator"
	"demandexp/internal/logging"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the topology, ping every host pair and tear it down",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadConfig(configPath, schemaPath)
		if err != nil {
			return err
		}
		if err := requireRoot(); err != nil {
			return err
		}
		ctx := cmd.Context()
		log := logging.FromContext(ctx)

		network := emulator.New(cfg.Topology, emulator.OSExecutor{}, log)
		if err := network.Start(ctx); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, network.Stop(ctx))
		}()

		results, pingErr := network.PingAll(ctx, checkTimeout)
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(out, "%s -> %s: X (%v)\n", r.From, r.To, r.Err)
				continue
			}
			fmt.Fprintf(out, "%s -> %s: %s\n", r.From, r.To, r.RTT)
		}
		return pingErr
	},
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Second, "Per-ping timeout")
}
