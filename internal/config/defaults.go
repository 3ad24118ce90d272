package config

const (
	defaultLibraryDir      = "~/.local/share/deadwax"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 60
	defaultBackupRetention = 10
)

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
		},
		Backups: Backups{
			RetentionCount: defaultBackupRetention,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
