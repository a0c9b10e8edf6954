package workflow

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/executor"
	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
)

// JobRunner executes one matrix leg end to end and persists the job's
// lifecycle. The executor package provides the production implementation.
type JobRunner interface {
	RunJob(ctx context.Context, build *queue.Build, job *queue.Job, leg pipeline.Leg) error
}

// Manager coordinates build processing from the queue.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	runner       JobRunner
	pollInterval time.Duration
	hostOS       string

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithRunner substitutes the job runner (used in tests).
func WithRunner(runner JobRunner) ManagerOption {
	return func(m *Manager) {
		m.runner = runner
	}
}

// WithHostOS overrides the detected host OS name (used in tests).
func WithHostOS(name string) ManagerOption {
	return func(m *Manager) {
		m.hostOS = name
	}
}

// NewManager constructs a workflow manager backed by the shell executor.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config is required")
	}
	if store == nil {
		return nil, errors.New("workflow: store is required")
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Runner.QueuePollInterval) * time.Second,
		hostOS:       hostOSName(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runner == nil {
		runner, err := executor.New(cfg, store, logger)
		if err != nil {
			return nil, err
		}
		m.runner = runner
	}
	return m, nil
}

// Running reports whether the manager's poll loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent queue fetch failure, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func hostOSName() string {
	if runtime.GOOS == "darwin" {
		return pipeline.OSMacOS
	}
	return pipeline.OSLinux
}
