package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
	"conveyor/internal/services"
)

func (m *Manager) processBuild(ctx context.Context, build *queue.Build) error {
	ctx = services.WithBuildID(ctx, build.ID)
	logger := m.logger.With(logging.Int64(logging.FieldBuildID, build.ID))

	legs, err := m.planBuild(build)
	if err != nil {
		return m.errorBuild(ctx, logger, build, fmt.Sprintf("pipeline expansion failed: %v", err))
	}
	if len(legs) == 0 {
		return m.errorBuild(ctx, logger, build, fmt.Sprintf("no matrix legs runnable on this host (%s)", m.hostOS))
	}

	now := time.Now().UTC()
	build.Status = queue.BuildRunning
	build.StartedAt = &now
	if err := m.store.UpdateBuild(ctx, build); err != nil {
		return err
	}
	logger.Info("build started",
		logging.String(logging.FieldEventType, "build_started"),
		logging.Int("legs", len(legs)),
	)

	jobs, err := m.insertJobs(ctx, build, legs)
	if err != nil {
		// A partial insert leaves created jobs no runner will claim;
		// remove them so the errored build carries no orphan rows.
		if _, derr := m.store.DeleteJobsForBuild(context.WithoutCancel(ctx), build.ID); derr != nil {
			logger.Warn("failed to remove partially enqueued jobs", logging.Error(derr))
		}
		return m.errorBuild(ctx, logger, build, fmt.Sprintf("failed to enqueue jobs: %v", err))
	}

	var group errgroup.Group
	group.SetLimit(m.cfg.Runner.MaxParallelJobs)
	for i := range legs {
		job, leg := jobs[i], legs[i]
		group.Go(func() error {
			// Legs are independent; a failing leg must not cancel its
			// siblings, so errors are recorded per job and not returned.
			if err := m.runner.RunJob(ctx, build, job, leg); err != nil {
				logger.Warn("job finished with failure",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
				)
			}
			return nil
		})
	}
	_ = group.Wait()

	return m.finishBuild(ctx, logger, build)
}

// planBuild expands the build's stored pipeline file into matrix legs,
// dropping legs the host cannot run when runner.host_os_only is set.
func (m *Manager) planBuild(build *queue.Build) ([]pipeline.Leg, error) {
	file, err := pipeline.Parse([]byte(build.PipelineYAML))
	if err != nil {
		return nil, err
	}
	plan, err := file.Plan()
	if err != nil {
		return nil, err
	}
	if !m.cfg.Runner.HostOSOnly {
		return plan.Legs, nil
	}
	legs := make([]pipeline.Leg, 0, len(plan.Legs))
	for _, leg := range plan.Legs {
		if leg.OS == m.hostOS {
			legs = append(legs, leg)
		}
	}
	return legs, nil
}

func (m *Manager) insertJobs(ctx context.Context, build *queue.Build, legs []pipeline.Leg) ([]*queue.Job, error) {
	jobs := make([]*queue.Job, 0, len(legs))
	for i, leg := range legs {
		envJSON, err := json.Marshal(leg.MatrixEnv)
		if err != nil {
			return nil, err
		}
		job := &queue.Job{
			ID:      uuid.NewString(),
			BuildID: build.ID,
			Number:  i + 1,
			Name:    leg.Name(),
			OS:      leg.OS,
			Python:  leg.Python,
			EnvJSON: string(envJSON),
		}
		if err := m.store.InsertJob(ctx, job); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (m *Manager) finishBuild(ctx context.Context, logger *slog.Logger, build *queue.Build) error {
	persistCtx := context.WithoutCancel(ctx)
	jobs, err := m.store.JobsForBuild(persistCtx, build.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	build.Status = queue.AggregateBuildStatus(jobs)
	build.FinishedAt = &now
	build.ErrorMessage = buildFailureMessage(jobs)
	if build.Status == queue.BuildCanceled {
		build.ErrorMessage = queue.DaemonStopReason
	}
	if err := m.store.UpdateBuild(persistCtx, build); err != nil {
		return err
	}

	logger.Info("build finished",
		logging.String(logging.FieldEventType, "build_finished"),
		logging.String("status", string(build.Status)),
	)
	return ctx.Err()
}

func (m *Manager) errorBuild(ctx context.Context, logger *slog.Logger, build *queue.Build, message string) error {
	now := time.Now().UTC()
	build.Status = queue.BuildErrored
	build.ErrorMessage = message
	build.FinishedAt = &now
	if err := m.store.UpdateBuild(context.WithoutCancel(ctx), build); err != nil {
		return err
	}
	logger.Error("build errored",
		logging.String(logging.FieldEventType, "build_errored"),
		logging.String("reason", message),
	)
	return nil
}

func buildFailureMessage(jobs []*queue.Job) string {
	failed := 0
	first := ""
	for _, job := range jobs {
		switch job.Status {
		case queue.JobFailed, queue.JobErrored:
			failed++
			if first == "" {
				first = job.Name
			}
		}
	}
	if failed == 0 {
		return ""
	}
	if failed == 1 {
		return fmt.Sprintf("job %q did not pass", first)
	}
	return fmt.Sprintf("%d of %d jobs did not pass", failed, len(jobs))
}
