package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autorip/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to publish a test ntfy message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp *ipc.TestNotificationResponse
			err := ctx.withClient(func(client *ipc.Client) (err error) {
				resp, err = client.TestNotification()
				return err
			})
			if err != nil {
				return fmt.Errorf("test notification: %w", err)
			}
			msg := displayMessage(resp.Message)
			if msg == "" {
				msg = "Notification not sent"
				if resp.Sent {
					msg = "Test notification sent"
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
