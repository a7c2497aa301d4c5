package main

import (
	"os"
	"path/filepath"
	"testing"

	"autorip/internal/testsupport"
)

func TestConfigInitShowValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	socket := filepath.Join(testsupport.BaseDir(cfg), "unused.sock")

	out, _, err := runCLI(t, []string{"config", "validate"}, socket, configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Mode: rip")

	out, _, err = runCLI(t, []string{"config", "show"}, socket, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[polling]")
	requireContains(t, out, cfg.Paths.RipDir)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, socket, configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, socket, configPath); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, socket, configPath); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "validate"}, socket, target); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestConfigLoadErrorSurfaces(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[polling]\nmode = \"transcode\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"status"}, filepath.Join(dir, "x.sock"), bad); err == nil {
		t.Fatal("expected invalid mode to fail config load")
	}
}

func TestConfigValidateWarnsWithoutCreatingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.Remove(cfg.Paths.RipDir); err != nil {
		t.Fatal(err)
	}
	configPath := writeTestConfig(t, cfg)
	socket := filepath.Join(testsupport.BaseDir(cfg), "unused.sock")

	out, _, err := runCLI(t, []string{"config", "validate"}, socket, configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Warning:")
	requireContains(t, out, "Configuration valid")
	if _, err := os.Stat(cfg.Paths.RipDir); !os.IsNotExist(err) {
		t.Fatalf("validate should not create %s (stat err %v)", cfg.Paths.RipDir, err)
	}
}
