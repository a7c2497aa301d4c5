package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePolling()
	c.normalizeMakeMKV()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.rip_dir", &c.Paths.RipDir, defaultRipDir},
		{"paths.backup_dir", &c.Paths.BackupDir, defaultBackupDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := ExpandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizePolling() {
	c.Polling.Mode = strings.ToLower(strings.TrimSpace(c.Polling.Mode))
	if c.Polling.Mode == "" {
		c.Polling.Mode = ModeRip
	}
	if value, ok := os.LookupEnv("AUTORIP_MODE"); ok && strings.TrimSpace(value) != "" {
		c.Polling.Mode = strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) normalizeMakeMKV() {
	c.MakeMKV.Binary = strings.TrimSpace(c.MakeMKV.Binary)
	if c.MakeMKV.Binary == "" {
		c.MakeMKV.Binary = defaultMakemkvBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
