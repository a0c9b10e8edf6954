package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	return slog.New(newConsoleHandler(buf, lv, false))
}

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo)

	logger = logger.With(String(FieldComponent, "workflow"))
	logger.Info("build started", Int64(FieldBuildID, 7), String(FieldOS, "linux"))

	line := buf.String()
	if !strings.Contains(line, "INFO workflow: build started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "build_id=7") || !strings.Contains(line, "os=linux") {
		t.Fatalf("missing fields in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelInfo)

	logger.Info("command finished", String("command", "py.test tests/"))

	if !strings.Contains(buf.String(), `command="py.test tests/"`) {
		t.Fatalf("expected quoted command, got %q", buf.String())
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelWarn)

	logger.Info("should be dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "WARN kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNoopHandlerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop handler should report disabled")
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("unexpected level for unknown value: %v", got)
	}
	if got := parseLevel("Debug"); got != slog.LevelDebug {
		t.Fatalf("expected debug, got %v", got)
	}
}
