package main

import (
	"context"
	"path/filepath"
	"testing"

	"conveyor/internal/logging"
	"conveyor/internal/queue"
	"conveyor/internal/testsupport"
)

func TestRetentionTargets(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	targets := retentionTargets(cfg)
	if len(targets) != 1 {
		t.Fatalf("expected 1 retention target, got %d", len(targets))
	}
	expected := filepath.Join(cfg.Paths.LogDir, "jobs")
	if targets[0].Dir != expected {
		t.Fatalf("unexpected target dir %q", targets[0].Dir)
	}

	if got := retentionTargets(nil); got != nil {
		t.Fatalf("expected nil targets for nil config, got %v", got)
	}
}

func TestRecoverInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	build := testsupport.NewBuild(t, store, "script:\n  - true\n")
	build.Status = queue.BuildRunning
	if err := store.UpdateBuild(ctx, build); err != nil {
		t.Fatalf("UpdateBuild: %v", err)
	}

	if err := recoverInFlight(ctx, store, logging.NewNop()); err != nil {
		t.Fatalf("recoverInFlight: %v", err)
	}

	refreshed, err := store.GetBuild(ctx, build.ID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if refreshed.Status != queue.BuildErrored {
		t.Fatalf("expected errored build after recovery, got %q", refreshed.Status)
	}
	if refreshed.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected error message %q", refreshed.ErrorMessage)
	}
}
