package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := ensureNonNegative(map[string]int{
		"makemkv.info_timeout":       c.MakeMKV.InfoTimeout,
		"makemkv.rip_timeout":        c.MakeMKV.RipTimeout,
		"makemkv.min_length_seconds": c.MakeMKV.MinLengthSeconds,
	}); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePolling() error {
	if c.Polling.IntervalSeconds <= 0 {
		return errors.New("polling.interval_seconds must be positive")
	}
	switch c.Polling.Mode {
	case ModeRip, ModeBackup:
	default:
		return fmt.Errorf("polling.mode must be %q or %q, got %q", ModeRip, ModeBackup, c.Polling.Mode)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func ensureNonNegative(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}
