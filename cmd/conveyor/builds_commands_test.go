package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"conveyor/internal/queue"
)

func submitAndWait(t *testing.T, env *cliTestEnv, pipelinePath string) int64 {
	t.Helper()
	out, _, err := runCLI(t, []string{"submit", pipelinePath}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "submitted")

	fields := strings.Fields(out)
	if len(fields) < 2 {
		t.Fatalf("unexpected submit output: %q", out)
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		t.Fatalf("parse build id from %q: %v", out, err)
	}

	waitFor(t, 10*time.Second, func() bool {
		build, err := env.store.GetBuild(context.Background(), id)
		if err != nil {
			t.Fatalf("GetBuild: %v", err)
		}
		return build.Finished()
	})
	return id
}

func TestSubmitListShowRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePipelineFile(t, "script:\n  - py.test tests/\n")

	id := submitAndWait(t, env, path)

	out, _, err := runCLI(t, []string{"builds", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("builds list: %v", err)
	}
	requireContains(t, out, strconv.FormatInt(id, 10))
	requireContains(t, out, "passed")

	out, _, err = runCLI(t, []string{"builds", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("builds list --status: %v", err)
	}
	requireContains(t, out, "No builds queued")

	out, _, err = runCLI(t, []string{"builds", "show", strconv.FormatInt(id, 10)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("builds show: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Build %d: passed", id))
	requireContains(t, out, "linux")
}

func TestBuildsRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePipelineFile(t, "script:\n  - py.test tests/\n")

	id := submitAndWait(t, env, path)

	out, _, err := runCLI(t, []string{"builds", "retry", strconv.FormatInt(id, 10)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("builds retry: %v", err)
	}
	requireContains(t, out, "requeued")

	waitFor(t, 10*time.Second, func() bool {
		build, err := env.store.GetBuild(context.Background(), id)
		if err != nil {
			t.Fatalf("GetBuild: %v", err)
		}
		return build.Status == queue.BuildPassed
	})

	out, _, err = runCLI(t, []string{"builds", "clear", "--finished"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("builds clear: %v", err)
	}
	requireContains(t, out, "Removed 1 finished build(s)")
}

func TestBuildsCancelRejectsFinishedBuild(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePipelineFile(t, "script:\n  - py.test tests/\n")

	id := submitAndWait(t, env, path)

	if _, _, err := runCLI(t, []string{"builds", "cancel", strconv.FormatInt(id, 10)}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected cancel of finished build to fail")
	}

	if _, _, err := runCLI(t, []string{"builds", "cancel", "abc"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Workflow")
	requireContains(t, out, "queue.db")
	requireContains(t, out, "== Dependencies ==")
}
