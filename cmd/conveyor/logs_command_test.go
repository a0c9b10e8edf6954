package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsShowsDaemonLogTail(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := filepath.Join(env.cfg.Paths.LogDir, "conveyord.log")
	content := "daemon started\nbuild 1 queued\nbuild 1 passed\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write daemon log: %v", err)
	}

	stdout, stderr, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs command failed: %v\n%s", err, stderr)
	}
	if strings.Contains(stdout, "daemon started") {
		t.Fatalf("expected only the last two lines, got:\n%s", stdout)
	}
	requireContains(t, stdout, "build 1 queued")
	requireContains(t, stdout, "build 1 passed")
}

func TestLogsEmptyDaemonLog(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs command failed: %v\n%s", err, stderr)
	}
	requireContains(t, stdout, "No log entries available")
}

func TestLogsJobFlagRequiresBuild(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"logs", "--job", "2"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for --job without --build")
	}
	if !strings.Contains(err.Error(), "--job requires --build") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogsUnknownBuildFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"logs", "--build", "42"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown build")
	}
}
