package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"conveyor/internal/daemon"
	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
	"conveyor/internal/testsupport"
	"conveyor/internal/workflow"
)

type idleRunner struct{}

func (idleRunner) RunJob(context.Context, *queue.Build, *queue.Job, pipeline.Leg) error {
	return nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr, err := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithRunner(idleRunner{}))
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid: %d", status.PID)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSubmitValidatesPipeline(t *testing.T) {
	d, _ := newDaemon(t)
	ctx := context.Background()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(bad, []byte("script: []\n"), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	if _, err := d.SubmitBuild(ctx, bad); err == nil {
		t.Fatal("expected invalid pipeline to be rejected")
	}

	good := filepath.Join(dir, "good.yml")
	if err := os.WriteFile(good, []byte("script:\n  - true\n"), 0o644); err != nil {
		t.Fatalf("write pipeline: %v", err)
	}
	build, err := d.SubmitBuild(ctx, good)
	if err != nil {
		t.Fatalf("SubmitBuild: %v", err)
	}
	if build.Status != queue.BuildCreated {
		t.Fatalf("unexpected status %q", build.Status)
	}
	if build.PipelinePath != good {
		t.Fatalf("unexpected pipeline path %q", build.PipelinePath)
	}
}

func TestDaemonJobLogPath(t *testing.T) {
	d, store := newDaemon(t)
	ctx := context.Background()

	build, err := store.NewBuild(ctx, "conveyor.yml", "script:\n  - true\n")
	if err != nil {
		t.Fatalf("NewBuild: %v", err)
	}
	job := &queue.Job{
		ID:      "job-1",
		BuildID: build.ID,
		Number:  1,
		Name:    "linux python=3.6",
		OS:      "linux",
		Python:  "3.6",
		LogPath: filepath.Join(t.TempDir(), "job-1.log"),
	}
	if err := store.InsertJob(ctx, job); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	path, err := d.JobLogPath(ctx, build.ID, 1)
	if err != nil {
		t.Fatalf("JobLogPath: %v", err)
	}
	if path != job.LogPath {
		t.Fatalf("unexpected path %q", path)
	}
	if _, err := d.JobLogPath(ctx, build.ID, 2); err == nil {
		t.Fatal("expected missing job number to fail")
	}
	if _, err := d.JobLogPath(ctx, build.ID+1, 1); err == nil {
		t.Fatal("expected unknown build to fail")
	}
}

func TestDaemonCancelAndRetry(t *testing.T) {
	d, store := newDaemon(t)
	ctx := context.Background()

	build, err := store.NewBuild(ctx, "conveyor.yml", "script:\n  - true\n")
	if err != nil {
		t.Fatalf("NewBuild: %v", err)
	}

	canceled, err := d.CancelBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("CancelBuild: %v", err)
	}
	if canceled.Status != queue.BuildCanceled {
		t.Fatalf("unexpected status %q", canceled.Status)
	}
	if _, err := d.CancelBuild(ctx, build.ID); err == nil {
		t.Fatal("expected cancel of finished build to fail")
	}

	retried, err := d.RetryBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("RetryBuild: %v", err)
	}
	if retried.Status != queue.BuildCreated {
		t.Fatalf("unexpected status %q", retried.Status)
	}
	if retried.StartedAt != nil || retried.FinishedAt != nil {
		t.Fatal("expected retry to clear timestamps")
	}
	if _, err := d.RetryBuild(ctx, retried.ID); err == nil {
		t.Fatal("expected retry of pending build to fail")
	}
}
