package config

const (
	defaultConfigPath          = "~/.config/autorip/config.toml"
	defaultStateDir            = "~/.local/share/autorip"
	defaultLogDir              = "~/.local/share/autorip/logs"
	defaultRipDir              = "~/autorip/rips"
	defaultBackupDir           = "~/autorip/backups"
	defaultPollIntervalSeconds = 5
	defaultMakemkvBinary       = "makemkvcon"
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			RipDir:    defaultRipDir,
			BackupDir: defaultBackupDir,
		},
		Polling: Polling{
			IntervalSeconds: defaultPollIntervalSeconds,
			Mode:            ModeRip,
			Autostart:       true,
			Netlink:         true,
		},
		MakeMKV: MakeMKV{
			Binary: defaultMakemkvBinary,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
