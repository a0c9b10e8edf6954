package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"conveyor/internal/config"
	"conveyor/internal/deps"
	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
	"conveyor/internal/workflow"
)

// Daemon coordinates the workflow manager and enforces single-instance
// execution via a lock file next to the queue database.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	QueueDBPath  string
	LastError    string
	Queue        queue.HealthSummary
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "conveyord.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		logPath:  filepath.Join(cfg.Paths.LogDir, "conveyord.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another conveyor daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("conveyor daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("conveyor daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// SubmitBuild validates a pipeline file and enqueues a build for it.
func (d *Daemon) SubmitBuild(ctx context.Context, pipelinePath string) (*queue.Build, error) {
	trimmed := strings.TrimSpace(pipelinePath)
	if trimmed == "" {
		return nil, errors.New("pipeline path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve pipeline path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	if _, err := pipeline.Parse(data); err != nil {
		return nil, fmt.Errorf("invalid pipeline file: %w", err)
	}
	build, err := d.store.NewBuild(ctx, absPath, string(data))
	if err != nil {
		return nil, fmt.Errorf("enqueue build: %w", err)
	}
	d.logger.Info("build submitted",
		logging.Int64(logging.FieldBuildID, build.ID),
		logging.String("pipeline", absPath),
	)
	return build, nil
}

// ListBuilds returns builds filtered by optional statuses.
func (d *Daemon) ListBuilds(ctx context.Context, statuses []queue.BuildStatus) ([]*queue.Build, error) {
	return d.store.ListBuilds(ctx, statuses...)
}

// DescribeBuild returns a build and its jobs.
func (d *Daemon) DescribeBuild(ctx context.Context, id int64) (*queue.Build, []*queue.Job, error) {
	build, err := d.store.GetBuild(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if build == nil {
		return nil, nil, fmt.Errorf("build %d not found", id)
	}
	jobs, err := d.store.JobsForBuild(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return build, jobs, nil
}

// CancelBuild cancels a build that has not started running yet.
func (d *Daemon) CancelBuild(ctx context.Context, id int64) (*queue.Build, error) {
	build, err := d.store.GetBuild(ctx, id)
	if err != nil {
		return nil, err
	}
	if build == nil {
		return nil, fmt.Errorf("build %d not found", id)
	}
	if build.Status != queue.BuildCreated {
		return nil, fmt.Errorf("build %d is %s and cannot be canceled", id, build.Status)
	}
	now := time.Now().UTC()
	build.Status = queue.BuildCanceled
	build.ErrorMessage = "canceled before start"
	build.FinishedAt = &now
	if err := d.store.UpdateBuild(ctx, build); err != nil {
		return nil, err
	}
	d.logger.Info("build canceled", logging.Int64(logging.FieldBuildID, build.ID))
	return build, nil
}

// RetryBuild resets a finished build back to created so the workflow picks
// it up again. Jobs from the previous attempt are discarded.
func (d *Daemon) RetryBuild(ctx context.Context, id int64) (*queue.Build, error) {
	build, err := d.store.GetBuild(ctx, id)
	if err != nil {
		return nil, err
	}
	if build == nil {
		return nil, fmt.Errorf("build %d not found", id)
	}
	if !build.Finished() {
		return nil, fmt.Errorf("build %d is %s and cannot be retried", id, build.Status)
	}
	if _, err := d.store.DeleteJobsForBuild(ctx, id); err != nil {
		return nil, err
	}
	build.Status = queue.BuildCreated
	build.ErrorMessage = ""
	build.StartedAt = nil
	build.FinishedAt = nil
	if err := d.store.UpdateBuild(ctx, build); err != nil {
		return nil, err
	}
	d.logger.Info("build queued for retry", logging.Int64(logging.FieldBuildID, build.ID))
	return build, nil
}

// ClearQueue removes all builds and their jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearFinished removes builds that reached a terminal status.
func (d *Daemon) ClearFinished(ctx context.Context) (int64, error) {
	return d.store.ClearFinished(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// JobLogPath resolves the command log file for one job of a build.
func (d *Daemon) JobLogPath(ctx context.Context, buildID int64, jobNumber int) (string, error) {
	jobs, err := d.store.JobsForBuild(ctx, buildID)
	if err != nil {
		return "", err
	}
	for _, job := range jobs {
		if job.Number == jobNumber {
			if job.LogPath == "" {
				return "", fmt.Errorf("job %d.%d has no log yet", buildID, jobNumber)
			}
			return job.LogPath, nil
		}
	}
	return "", fmt.Errorf("build %d has no job %d", buildID, jobNumber)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		QueueDBPath:  d.store.Path(),
		Dependencies: deps.CheckBinaries(deps.Default(d.cfg.Runner.Shell)),
	}
	if err := d.workflow.LastError(); err != nil {
		status.LastError = err.Error()
	}
	if summary, err := d.store.Summary(ctx); err == nil {
		status.Queue = summary
	}
	return status
}
