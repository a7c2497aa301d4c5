package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag, configFlag string
	ctx := newCommandContext(&socketFlag, &configFlag)

	root := &cobra.Command{
		Use:   "autorip",
		Short: "Rip or back up optical discs as soon as they are inserted",
		Long: "autorip watches the optical drives, waits for a disc, and hands each new batch\n" +
			"of discs to MakeMKV. Run `autorip start` to launch the background daemon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Daemon IPC socket (defaults to the state directory)")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(newDaemonCommands(ctx)...)
	root.AddCommand(
		newDaemonRunCommand(ctx),
		newDrivesCommand(ctx),
		newHistoryCommand(ctx),
		newLogsCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}
