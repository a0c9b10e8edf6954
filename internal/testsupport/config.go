package testsupport

import (
	"path/filepath"
	"testing"

	"conveyor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspaces")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Runner.QueuePollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxParallelJobs caps leg parallelism on the test config.
func WithMaxParallelJobs(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Runner.MaxParallelJobs = n
	}
}

// WithCommandTimeout sets the per-command timeout in seconds.
func WithCommandTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Runner.CommandTimeout = seconds
	}
}
