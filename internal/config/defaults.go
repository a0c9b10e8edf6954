package config

const (
	defaultWorkspaceDir      = "~/.local/share/conveyor/workspaces"
	defaultLogDir            = "~/.local/share/conveyor/logs"
	defaultMaxParallelJobs   = 2
	defaultCommandTimeout    = 3600
	defaultShell             = "bash"
	defaultQueuePollInterval = 5
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Runner: Runner{
			MaxParallelJobs:   defaultMaxParallelJobs,
			CommandTimeout:    defaultCommandTimeout,
			Shell:             defaultShell,
			HostOSOnly:        false,
			QueuePollInterval: defaultQueuePollInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
