package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autorip/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var runID string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lines < 0 {
				return fmt.Errorf("--lines must be non-negative")
			}
			tailCtx := cmd.Context()
			if tailCtx == nil {
				tailCtx = context.Background()
			}
			err = logs.Tail(tailCtx, cfg.CurrentLogPath(), cmd.OutOrStdout(), logs.Options{
				Lines:  lines,
				Follow: follow,
				Match:  runID,
			})
			switch {
			case errors.Is(err, logs.ErrNoLog):
				fmt.Fprintln(cmd.OutOrStdout(), "No daemon log yet; start the daemon with `autorip start`")
				return nil
			case follow && errors.Is(err, context.Canceled):
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines as they are written")
	cmd.Flags().StringVar(&runID, "run", "", "Only show lines that mention this run ID")
	return cmd
}
