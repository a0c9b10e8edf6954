package config

import "strings"

// normalize expands path fields and fills empty values with defaults so the
// rest of the codebase never re-checks them.
func (c *Config) normalize() error {
	defaults := Default()

	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaults.Paths.WorkspaceDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaults.Paths.LogDir
	}

	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if c.Runner.MaxParallelJobs <= 0 {
		c.Runner.MaxParallelJobs = defaults.Runner.MaxParallelJobs
	}
	if strings.TrimSpace(c.Runner.Shell) == "" {
		c.Runner.Shell = defaults.Runner.Shell
	}
	if c.Runner.QueuePollInterval <= 0 {
		c.Runner.QueuePollInterval = defaults.Runner.QueuePollInterval
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaults.Logging.RetentionDays
	}

	return nil
}
