package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"autorip/internal/config"
)

// ConfigOption adjusts the configuration built by NewConfig. root is the
// per-test temp directory holding every configured path.
type ConfigOption func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory with the
// directories created. Netlink and notifications start disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	for dst, name := range map[*string]string{
		&cfg.Paths.StateDir:  "state",
		&cfg.Paths.LogDir:    "logs",
		&cfg.Paths.RipDir:    "rips",
		&cfg.Paths.BackupDir: "backups",
	} {
		*dst = filepath.Join(root, name)
	}
	cfg.Polling.Netlink = false
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMode sets polling.mode.
func WithMode(mode string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Polling.Mode = mode }
}

// WithAutostart sets polling.autostart.
func WithAutostart(enabled bool) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Polling.Autostart = enabled }
}

// WithNtfyTopic points notifications at topic, typically an httptest URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) { cfg.Notifications.NtfyTopic = topic }
}

// WithStubbedBinaries puts no-op executables named names (makemkvcon and
// eject by default) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, root string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"makemkvcon", "eject"}
		}
		bin := filepath.Join(root, "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bin, err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory behind a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
