package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"autorip/internal/inventory"
)

type driveView struct {
	Index   int    `json:"index"`
	State   string `json:"state"`
	DriveID string `json:"drive_id"`
	Drive   string `json:"drive"`
	Disc    string `json:"disc,omitempty"`
}

func newDrivesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "drives",
		Short: "List optical drives and inserted discs as makemkvcon sees them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			inv, err := inventory.New(cfg.MakeMKV.Binary, inventory.WithInfoTimeout(cfg.InfoTimeout()))
			if err != nil {
				return err
			}
			queryCtx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			drives, err := inv.Drives(queryCtx)
			if err != nil {
				return fmt.Errorf("list drives: %w", err)
			}

			views := make([]driveView, 0, len(drives))
			for _, d := range drives {
				view := driveView{Index: d.Index, State: d.State.String(), DriveID: d.ID(), Drive: d.DriveName}
				if d.HasDisc() {
					view.Disc = d.Record().Title
				}
				views = append(views, view)
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No drives found")
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				disc := v.Disc
				if disc == "" {
					disc = "-"
				}
				rows = append(rows, []string{strconv.Itoa(v.Index), v.DriveID, v.Drive, displayLabel(v.State), disc})
			}
			fmt.Fprint(out, renderTable([]column{
				{title: "#", numeric: true},
				{title: "Drive ID"},
				{title: "Drive", maxWidth: 32},
				{title: "State"},
				{title: "Disc"},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
