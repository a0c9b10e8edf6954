package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.MaxParallelJobs < 1 {
		return errors.New("runner.max_parallel_jobs must be at least 1")
	}
	if c.Runner.CommandTimeout < 0 {
		return errors.New("runner.command_timeout must not be negative")
	}
	if c.Runner.QueuePollInterval < 1 {
		return errors.New("runner.queue_poll_interval must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
