package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"autorip/internal/config"
	"autorip/internal/daemonctl"
	"autorip/internal/ipc"
)

// skipConfigLoad marks commands that must run without a loadable config.
const skipConfigLoad = "skipConfigLoad"

func skipConfigAnnotation() map[string]string {
	return map[string]string{skipConfigLoad: "true"}
}

// commandContext carries the global flags and lazily loads the config once
// per invocation.
type commandContext struct {
	socketFlag *string
	configFlag *string

	loadOnce sync.Once
	cfg      *config.Config
	cfgErr   error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	return trimmed(c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.loadOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.cfgErr = err
			return
		}
		c.cfg = cfg
	})
	return c.cfg, c.cfgErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// socketPath prefers --socket, then the loaded config, then the default
// state directory.
func (c *commandContext) socketPath() string {
	if socket := trimmed(c.socketFlag); socket != "" {
		return socket
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.SocketPath()
	}
	return defaultSocketPath()
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	if daemonctl.IsUnavailable(err) {
		return fmt.Errorf("connect to daemon: nothing is listening on %s; start the daemon with `autorip start`", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func defaultSocketPath() string {
	cfg := config.Default()
	stateDir, err := config.ExpandPath(cfg.Paths.StateDir)
	if err != nil {
		return filepath.Join(os.TempDir(), "autorip.sock")
	}
	cfg.Paths.StateDir = stateDir
	return cfg.SocketPath()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}

func trimmed(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
