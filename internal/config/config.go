package config

import (
	"path/filepath"
	"time"
)

// Processing modes accepted by polling.mode.
const (
	ModeRip    = "rip"
	ModeBackup = "backup"
)

// Paths are the directories autorip reads and writes.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	RipDir    string `toml:"rip_dir"`
	BackupDir string `toml:"backup_dir"`
}

// Polling controls the disc polling loop.
type Polling struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	Mode            string `toml:"mode"`
	Autostart       bool   `toml:"autostart"`
	Netlink         bool   `toml:"netlink"`
}

// MakeMKV tunes makemkvcon invocations. Timeouts are seconds; zero disables them.
type MakeMKV struct {
	Binary           string `toml:"binary"`
	InfoTimeout      int    `toml:"info_timeout"`
	RipTimeout       int    `toml:"rip_timeout"`
	MinLengthSeconds int    `toml:"min_length_seconds"`
	EjectAfter       bool   `toml:"eject_after"`
}

// Notifications selects which run events are pushed to ntfy.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStarted     bool   `toml:"run_started"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the decoded autorip.toml. Paths are absolute after Load.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Polling       Polling       `toml:"polling"`
	MakeMKV       MakeMKV       `toml:"makemkv"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) PollInterval() time.Duration { return seconds(c.Polling.IntervalSeconds) }

// InfoTimeout bounds one makemkvcon info call; zero means no bound.
func (c *Config) InfoTimeout() time.Duration { return seconds(c.MakeMKV.InfoTimeout) }

// RipTimeout bounds one disc's rip or backup; zero means no bound.
func (c *Config) RipTimeout() time.Duration { return seconds(c.MakeMKV.RipTimeout) }

// OutputDir returns the destination root for the configured mode.
func (c *Config) OutputDir() string {
	if c.Polling.Mode == ModeBackup {
		return c.Paths.BackupDir
	}
	return c.Paths.RipDir
}

// Files kept in the state and log directories.
func (c *Config) SocketPath() string     { return filepath.Join(c.Paths.StateDir, "autorip.sock") }
func (c *Config) LockPath() string       { return filepath.Join(c.Paths.StateDir, "autorip.lock") }
func (c *Config) PIDPath() string        { return filepath.Join(c.Paths.StateDir, "autorip.pid") }
func (c *Config) HistoryPath() string    { return filepath.Join(c.Paths.StateDir, "history.db") }
func (c *Config) CurrentLogPath() string { return filepath.Join(c.Paths.LogDir, "autorip.log") }
