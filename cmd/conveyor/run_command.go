package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"conveyor/internal/executor"
	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
)

// defaultPipelineFile is the file picked up when no argument is given,
// mirroring how hosted CI services look for a well-known name.
const defaultPipelineFile = "conveyor.yml"

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run [pipeline file]",
		Short: "Run a pipeline file locally without the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineLocally(cmd, ctx, pipelineArg(args))
		},
	}
}

func pipelineArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultPipelineFile
}

func runPipelineLocally(cmd *cobra.Command, cmdCtx *commandContext, path string) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve pipeline path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read pipeline file: %w", err)
	}
	file, err := pipeline.Parse(data)
	if err != nil {
		return fmt.Errorf("invalid pipeline file: %w", err)
	}
	plan, err := file.Plan()
	if err != nil {
		return err
	}
	legs := plan.Legs

	// One-shot runs keep their queue records and job logs in a scratch
	// directory so they never interfere with a running daemon.
	scratch, err := os.MkdirTemp("", "conveyor-run-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	runCfg := *cfg
	runCfg.Paths.WorkspaceDir = filepath.Join(scratch, "workspaces")
	runCfg.Paths.LogDir = filepath.Join(scratch, "logs")
	if err := runCfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := queue.Open(&runCfg)
	if err != nil {
		return fmt.Errorf("open scratch queue: %w", err)
	}
	defer store.Close()

	runner, err := executor.New(&runCfg, store, logging.NewNop())
	if err != nil {
		return err
	}

	build, err := store.NewBuild(cmd.Context(), absPath, string(data))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	build.Status = queue.BuildRunning
	build.StartedAt = &now
	if err := store.UpdateBuild(cmd.Context(), build); err != nil {
		return err
	}

	fmt.Fprintf(out, "Running %s (%d job(s))\n", absPath, len(legs))

	jobs := make([]*queue.Job, 0, len(legs))
	for i, leg := range legs {
		job := &queue.Job{
			ID:      uuid.NewString(),
			BuildID: build.ID,
			Number:  i + 1,
			Name:    leg.Name(),
			OS:      leg.OS,
			Python:  leg.Python,
		}
		if err := store.InsertJob(cmd.Context(), job); err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	for i, leg := range legs {
		job := jobs[i]
		fmt.Fprintf(out, "--> job %d: %s\n", job.Number, job.Name)
		runErr := runner.RunJob(cmd.Context(), build, job, leg)
		refreshed, err := store.GetJob(context.Background(), job.ID)
		if err != nil {
			return err
		}
		jobs[i] = refreshed
		printJobResult(out, refreshed, runErr)
	}

	finished := time.Now().UTC()
	build.Status = queue.AggregateBuildStatus(jobs)
	build.FinishedAt = &finished
	if err := store.UpdateBuild(context.Background(), build); err != nil {
		return err
	}

	if build.Status != queue.BuildPassed {
		return fmt.Errorf("build %s", build.Status)
	}
	fmt.Fprintln(out, "Build passed")
	return nil
}

func printJobResult(out io.Writer, job *queue.Job, runErr error) {
	switch job.Status {
	case queue.JobPassed:
		fmt.Fprintf(out, "    %s\n", job.Status)
		return
	default:
		fmt.Fprintf(out, "    %s at stage %s", job.Status, queue.StageLabel(job.Stage))
		if job.FailedCommand != "" {
			fmt.Fprintf(out, " (command: %s)", job.FailedCommand)
		}
		fmt.Fprintln(out)
	}
	if job.LogPath != "" {
		if data, err := os.ReadFile(job.LogPath); err == nil {
			_, _ = out.Write(data)
		}
	}
	if runErr != nil && job.ErrorMessage == "" {
		fmt.Fprintf(out, "    error: %v\n", runErr)
	}
}
