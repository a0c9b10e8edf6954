package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
	"conveyor/internal/services"
)

// Runner executes matrix jobs and persists their lifecycle in the queue.
type Runner struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	exec   Executor
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom command executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// New constructs a job runner.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires config")
	}
	if store == nil {
		return nil, errors.New("runner requires queue store")
	}
	runner := &Runner{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "executor"),
		exec:   NewShellExecutor(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// RunJob executes one leg from start to finish, persisting every transition.
// The returned error is nil when the job passed; otherwise it carries the
// classification marker that determined the job's terminal status.
func (r *Runner) RunJob(ctx context.Context, build *queue.Build, job *queue.Job, leg pipeline.Leg) error {
	if build == nil || job == nil {
		return errors.New("build and job are required")
	}

	jobCtx := services.WithBuildID(ctx, build.ID)
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobLogger := logging.WithContext(jobCtx, r.logger)

	workspace := filepath.Join(r.cfg.Paths.WorkspaceDir, fmt.Sprintf("build-%d", build.ID), fmt.Sprintf("job-%d", job.Number))
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return r.finishJob(jobCtx, jobLogger, job, services.Wrap(services.ErrEnvironment, string(pipeline.StageInstall), "create workspace", "", err), "")
	}

	logFile, logPath, err := r.openJobLog(job)
	if err != nil {
		return r.finishJob(jobCtx, jobLogger, job, services.Wrap(services.ErrEnvironment, string(pipeline.StageInstall), "open job log", "", err), "")
	}
	defer logFile.Close()
	job.LogPath = logPath

	now := time.Now().UTC()
	job.Status = queue.JobRunning
	job.StartedAt = &now
	if err := r.store.UpdateJob(jobCtx, job); err != nil {
		return fmt.Errorf("persist job start: %w", err)
	}

	jobLogger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String(logging.FieldOS, leg.OS),
		logging.String("leg", leg.Name()),
		logging.String("log_file", logPath),
	)

	env := r.jobEnv(build, job, leg, workspace)

	for _, stage := range pipeline.StageOrder {
		commands := leg.StageCommands(stage)
		if len(commands) == 0 {
			continue
		}

		stageCtx := services.WithStage(jobCtx, string(stage))
		stageLogger := logging.WithContext(stageCtx, r.logger)

		job.Stage = string(stage)
		if err := r.store.UpdateJob(stageCtx, job); err != nil {
			return fmt.Errorf("persist stage transition: %w", err)
		}
		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		for _, command := range commands {
			fmt.Fprintf(logFile, "$ %s\n", command.Line)
			stageLogger.Debug("command started", logging.String("command", command.Line))

			runErr := r.runCommand(stageCtx, command.Line, workspace, env, logFile)
			if runErr != nil {
				classified := r.classify(stageCtx, stage, command.Line, runErr)
				fmt.Fprintf(logFile, "\nThe command %q failed: %v\n", command.Line, runErr)
				return r.finishJob(stageCtx, stageLogger, job, classified, command.Line)
			}
		}

		stageLogger.Info("stage completed", logging.String(logging.FieldEventType, "stage_complete"))
	}

	finished := time.Now().UTC()
	job.Status = queue.JobPassed
	job.FinishedAt = &finished
	job.ErrorMessage = ""
	if err := r.store.UpdateJob(jobCtx, job); err != nil {
		return fmt.Errorf("persist job result: %w", err)
	}

	jobLogger.Info("job passed",
		logging.String(logging.FieldEventType, "job_passed"),
		logging.Duration("elapsed", finished.Sub(now)),
	)
	return nil
}

func (r *Runner) runCommand(ctx context.Context, line, dir string, env []string, logFile *os.File) error {
	cmdCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Runner.CommandTimeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.Runner.CommandTimeout)*time.Second)
		defer cancel()
	}

	err := r.exec.Run(cmdCtx, CommandSpec{
		Shell: r.cfg.Runner.Shell,
		Line:  line,
		Dir:   dir,
		Env:   env,
	}, func(text string) {
		fmt.Fprintln(logFile, text)
	})
	if err != nil && cmdCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return fmt.Errorf("%w: command exceeded %ds", services.ErrTimeout, r.cfg.Runner.CommandTimeout)
	}
	return err
}

func (r *Runner) classify(ctx context.Context, stage pipeline.Stage, line string, err error) error {
	switch {
	case ctx.Err() == context.Canceled:
		return context.Canceled
	case errors.Is(err, services.ErrTimeout):
		return err
	case stage == pipeline.StageScript:
		return services.Wrap(services.ErrCommand, string(stage), line, "", err)
	default:
		return services.Wrap(services.ErrEnvironment, string(stage), line, "", err)
	}
}

func (r *Runner) finishJob(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error, failedCommand string) error {
	if errors.Is(jobErr, context.Canceled) {
		job.SetFailed(queue.JobCanceled, queue.DaemonStopReason)
	} else {
		job.SetFailed(services.FailureStatus(jobErr), jobErr.Error())
	}
	job.FailedCommand = failedCommand

	logger.Error("job finished with failure",
		logging.String(logging.FieldEventType, "job_failure"),
		logging.String("resolved_status", string(job.Status)),
		logging.String("failed_command", failedCommand),
		logging.Error(jobErr),
	)
	// Persist even when the surrounding context was canceled.
	if err := r.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	return jobErr
}

func (r *Runner) openJobLog(job *queue.Job) (*os.File, string, error) {
	dir := filepath.Join(r.cfg.Paths.LogDir, "jobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, job.ID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func (r *Runner) jobEnv(build *queue.Build, job *queue.Job, leg pipeline.Leg, workspace string) []string {
	env := append(os.Environ(), pipeline.Environ(leg.Env)...)
	env = append(env,
		fmt.Sprintf("CONVEYOR_BUILD_NUMBER=%d", build.ID),
		fmt.Sprintf("CONVEYOR_JOB_NUMBER=%d.%d", build.ID, job.Number),
		"CONVEYOR_BUILD_DIR="+workspace,
	)
	return env
}
