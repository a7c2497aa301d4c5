package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"autorip/internal/config"
	"autorip/internal/daemon"
	"autorip/internal/history"
	"autorip/internal/ipc"
	"autorip/internal/logging"
	"autorip/internal/poller"
	"autorip/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *history.Store
	daemon     *daemon.Daemon
	poller     *poller.Service
	inv        *testsupport.Inventory
	pipe       *testsupport.Pipeline
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithAutostart(false)}, opts...)...)
	configPath := writeTestConfig(t, cfg)
	store := testsupport.MustOpenHistory(t, cfg)
	inv := &testsupport.Inventory{}
	pipe := &testsupport.Pipeline{}

	logger := logging.NewNop()
	svc, err := poller.New(poller.Options{
		Interval:  time.Hour,
		Mode:      poller.ModeRip,
		Inventory: inv,
		Pipeline:  pipe,
		Observer:  history.NewObserver(store, logger),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("poller.New: %v", err)
	}
	d, err := daemon.New(cfg, daemon.Deps{Poller: svc, History: store}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, cancel)
	if err != nil {
		cancel()
		_ = d.Stop(context.Background())
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Stop(context.Background())
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		poller:     svc,
		inv:        inv,
		pipe:       pipe,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
