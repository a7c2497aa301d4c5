package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autorip/internal/daemonctl"
	"autorip/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent rip and backup runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := daemonctl.History(cmd.Context(), ctx.socketPath(), ctx.configValue(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []ipc.HistoryEntry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprint(out, renderTable([]column{
				{title: "Started"},
				{title: "Mode"},
				{title: "Status"},
				{title: "Duration", numeric: true},
				{title: "Discs"},
				{title: "Error", maxWidth: 48},
			}, historyRows(entries)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func historyRows(entries []ipc.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.StartedAt.Local().Format(time.DateTime),
			e.Mode,
			displayLabel(e.Status),
			historyDuration(e),
			historyDiscTitles(e.Discs),
			truncate(e.Error, 120),
		})
	}
	return rows
}

func historyDuration(e ipc.HistoryEntry) string {
	if e.FinishedAt.IsZero() || e.FinishedAt.Before(e.StartedAt) {
		return "-"
	}
	return e.FinishedAt.Sub(e.StartedAt).Round(time.Second).String()
}

func historyDiscTitles(discs []ipc.HistoryDisc) string {
	if len(discs) == 0 {
		return "-"
	}
	titles := make([]string, 0, len(discs))
	for _, d := range discs {
		titles = append(titles, d.Title)
	}
	if len(titles) > 3 {
		return strings.Join(titles[:3], ", ") + " +" + strconv.Itoa(len(titles)-3)
	}
	return strings.Join(titles, ", ")
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "\n", " "))
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
