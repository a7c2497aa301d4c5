package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autorip/internal/testsupport"
)

func TestLogsCommandPrintsTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	socket := filepath.Join(testsupport.BaseDir(cfg), "unused.sock")

	out, _, err := runCLI(t, []string{"logs"}, socket, configPath)
	if err != nil {
		t.Fatalf("logs without file: %v", err)
	}
	requireContains(t, out, "No daemon log yet")

	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "level=INFO msg=\"polling started\"\n" +
		"level=INFO msg=\"run started\" run_id=run-7\n" +
		"level=INFO msg=\"run finished\" run_id=run-7\n"
	if err := os.WriteFile(cfg.CurrentLogPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, socket, configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if out != "level=INFO msg=\"run finished\" run_id=run-7\n" {
		t.Fatalf("unexpected tail %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--run", "run-7"}, socket, configPath)
	if err != nil {
		t.Fatalf("logs --run: %v", err)
	}
	requireContains(t, out, "run started")
	if strings.Contains(out, "polling started") {
		t.Fatalf("--run should filter unrelated lines, got %q", out)
	}
}
