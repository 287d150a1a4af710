package config

const (
	defaultConfigPath       = "~/.config/deliver/config.toml"
	defaultStateDirFallback = "~/.local/state/deliver"
	defaultGitBinary        = "git"
	defaultTarBinary        = "tar"
	defaultShell            = "sh"
	defaultCloneTimeout     = 600
	defaultArchiveTimeout   = 300
	defaultNtfyTimeout      = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	// VerboseEnv switches logging to debug when set to YES.
	VerboseEnv = "DELIVER_VERBOSE"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
		},
		Tools: Tools{
			Git:   defaultGitBinary,
			Tar:   defaultTarBinary,
			Shell: defaultShell,
		},
		Pipeline: Pipeline{
			CloneTimeout:   defaultCloneTimeout,
			ArchiveTimeout: defaultArchiveTimeout,
			VerifyCopies:   true,
			Archive:        true,
			Ledger:         true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Source: true,
		},
	}
}
