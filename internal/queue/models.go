package queue

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuildStatus represents the lifecycle of a submitted pipeline build.
type BuildStatus string

const (
	BuildCreated  BuildStatus = "created"
	BuildRunning  BuildStatus = "running"
	BuildPassed   BuildStatus = "passed"
	BuildFailed   BuildStatus = "failed"
	BuildErrored  BuildStatus = "errored"
	BuildCanceled BuildStatus = "canceled"
)

// JobStatus represents the lifecycle of one matrix leg.
type JobStatus string

const (
	JobCreated  JobStatus = "created"
	JobRunning  JobStatus = "running"
	JobPassed   JobStatus = "passed"
	JobFailed   JobStatus = "failed"
	JobErrored  JobStatus = "errored"
	JobCanceled JobStatus = "canceled"
)

// DaemonStopReason is the error message set on in-flight work when the
// daemon shuts down underneath it.
const DaemonStopReason = "runner stopped"

var allBuildStatuses = []BuildStatus{
	BuildCreated,
	BuildRunning,
	BuildPassed,
	BuildFailed,
	BuildErrored,
	BuildCanceled,
}

var allJobStatuses = []JobStatus{
	JobCreated,
	JobRunning,
	JobPassed,
	JobFailed,
	JobErrored,
	JobCanceled,
}

// Build is one submission of a pipeline file.
type Build struct {
	ID           int64
	PipelinePath string
	PipelineYAML string
	Status       BuildStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Job is one matrix leg of a build.
type Job struct {
	ID            string
	BuildID       int64
	Number        int
	Name          string
	OS            string
	Python        string
	EnvJSON       string
	Status        JobStatus
	Stage         string
	FailedCommand string
	ErrorMessage  string
	LogPath       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total    int
	Created  int
	Running  int
	Passed   int
	Failed   int
	Errored  int
	Canceled int
}

// AllBuildStatuses returns the ordered list of known build statuses.
func AllBuildStatuses() []BuildStatus {
	cp := make([]BuildStatus, len(allBuildStatuses))
	copy(cp, allBuildStatuses)
	return cp
}

// ParseBuildStatus converts a string into a known BuildStatus.
func ParseBuildStatus(value string) (BuildStatus, bool) {
	normalized := BuildStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allBuildStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allJobStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Finished reports whether a build has reached a terminal status.
func (s BuildStatus) Finished() bool {
	switch s {
	case BuildPassed, BuildFailed, BuildErrored, BuildCanceled:
		return true
	default:
		return false
	}
}

// Finished reports whether a job has reached a terminal status.
func (s JobStatus) Finished() bool {
	switch s {
	case JobPassed, JobFailed, JobErrored, JobCanceled:
		return true
	default:
		return false
	}
}

// Finished reports whether the build has reached a terminal status.
func (b *Build) Finished() bool {
	return b.Status.Finished()
}

// SetFailed marks the job terminal with the given status and message.
func (j *Job) SetFailed(status JobStatus, message string) {
	now := time.Now().UTC()
	j.Status = status
	j.ErrorMessage = message
	j.FinishedAt = &now
}

// AggregateBuildStatus folds job outcomes into the build outcome. The build
// passes only when every job passed; otherwise the most severe job outcome
// wins (errored over failed over canceled).
func AggregateBuildStatus(jobs []*Job) BuildStatus {
	if len(jobs) == 0 {
		return BuildErrored
	}
	var errored, failed, canceled bool
	for _, job := range jobs {
		switch job.Status {
		case JobErrored:
			errored = true
		case JobFailed:
			failed = true
		case JobCanceled:
			canceled = true
		case JobPassed:
		default:
			// Non-terminal job: the build is still running.
			return BuildRunning
		}
	}
	switch {
	case errored:
		return BuildErrored
	case failed:
		return BuildFailed
	case canceled:
		return BuildCanceled
	default:
		return BuildPassed
	}
}

var stageCaser = cases.Title(language.English)

// StageLabel converts a stage identifier into a human-facing label, e.g.
// "before_script" becomes "Before Script".
func StageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return ""
	}
	return stageCaser.String(strings.ReplaceAll(stage, "_", " "))
}
