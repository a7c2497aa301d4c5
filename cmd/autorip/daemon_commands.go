package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autorip/internal/daemonctl"
	"autorip/internal/daemonrun"
	"autorip/internal/ipc"
)

const (
	// launchWait bounds how long start waits for a freshly spawned daemon
	// to accept connections.
	launchWait = 10 * time.Second
	// shutdownWait must exceed the daemon's own shutdown grace so an
	// in-flight run is cancelled cleanly before the CLI resorts to SIGKILL.
	shutdownWait = daemonrun.ShutdownGrace + 10*time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newShutdownCommand(ctx),
		newStatusCommand(ctx),
		newScanCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start polling, launching the daemon if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			res, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, launchOptions(ctx), launchWait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Launched {
				fmt.Fprintln(out, "Daemon not running, launching...")
			}
			fmt.Fprintln(out, startSummary(res))
			return nil
		},
	}
}

func startSummary(res daemonctl.StartResult) string {
	switch res.State {
	case daemonctl.StartStateStarted:
		return "Polling started"
	case daemonctl.StartStateAlreadyRunning:
		return "Polling already running"
	}
	if msg := strings.TrimSpace(res.Message); msg != "" {
		return msg
	}
	return "Start request sent"
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop polling (the daemon keeps running; an active rip finishes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := daemonctl.StopPolling(ctx.socketPath())
			if notRunning(cmd.OutOrStdout(), err) {
				return nil
			}
			if err != nil {
				return err
			}
			msg := "Polling was not running"
			if resp.Stopped {
				msg = "Polling stopped"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newShutdownCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Terminate the daemon process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := daemonctl.ShutdownAndTerminate(ctx.socketPath(), ctx.configValue(), shutdownWait)
			if notRunning(cmd.OutOrStdout(), err) {
				return nil
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.ForcedKill && res.PID > 0 {
				fmt.Fprintf(out, "Daemon did not exit within %s; killed pid %d\n", shutdownWait, res.PID)
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, polling and dependency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}
			out := cmd.OutOrStdout()
			renderStatus(out, snap, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a scan cycle now instead of waiting for the next tick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), displayMessage(resp.Message))
				return nil
			})
		},
	}
}

// notRunning prints a notice and reports true when err means no daemon is
// listening.
func notRunning(out io.Writer, err error) bool {
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		return false
	}
	fmt.Fprintln(out, "Daemon is not running")
	return true
}

// displayMessage capitalizes a daemon response for terminal output.
func displayMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}
	return strings.ToUpper(message[:1]) + message[1:]
}

func launchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		SocketPath: trimmed(ctx.socketFlag),
	}
}
