package services

import (
	"errors"
	"fmt"
	"strings"

	"conveyor/internal/queue"
)

var (
	// ErrEnvironment marks failures during environment setup stages
	// (install, before_script). Jobs end up errored, not failed.
	ErrEnvironment = errors.New("environment setup error")
	// ErrCommand marks a non-zero exit from a script-stage command.
	ErrCommand = errors.New("command failed")
	// ErrValidation marks pipeline files the runner refuses to execute.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable runner configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks commands aborted by the per-command deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures worth retrying.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a job error to the status the workflow manager should
// persist. Setup problems are the environment's fault (errored); script
// failures are the build's fault (failed).
func FailureStatus(err error) queue.JobStatus {
	switch {
	case errors.Is(err, ErrEnvironment), errors.Is(err, ErrConfiguration), errors.Is(err, ErrTimeout):
		return queue.JobErrored
	case errors.Is(err, ErrCommand):
		return queue.JobFailed
	default:
		return queue.JobErrored
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
