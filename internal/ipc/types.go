package ipc

import (
	"time"

	"conveyor/internal/queue"
)

// BuildSummary is the wire representation of a queued build.
type BuildSummary struct {
	ID           int64  `json:"id"`
	PipelinePath string `json:"pipeline_path"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

// JobSummary is the wire representation of one matrix leg.
type JobSummary struct {
	ID            string `json:"id"`
	Number        int    `json:"number"`
	Name          string `json:"name"`
	OS            string `json:"os"`
	Python        string `json:"python,omitempty"`
	Status        string `json:"status"`
	Stage         string `json:"stage,omitempty"`
	FailedCommand string `json:"failed_command,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	LogPath       string `json:"log_path,omitempty"`
}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and queue status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockPath     string             `json:"lock_path"`
	QueueDBPath  string             `json:"queue_db_path"`
	LastError    string             `json:"last_error,omitempty"`
	QueueStats   map[string]int     `json:"queue_stats"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// BuildSubmitRequest enqueues a pipeline file as a new build.
type BuildSubmitRequest struct {
	Path string `json:"path"`
}

// BuildSubmitResponse returns the created build.
type BuildSubmitResponse struct {
	Build BuildSummary `json:"build"`
}

// BuildListRequest filters build listing by status.
type BuildListRequest struct {
	Statuses []string `json:"statuses"`
}

// BuildListResponse contains queued builds.
type BuildListResponse struct {
	Builds []BuildSummary `json:"builds"`
}

// BuildDescribeRequest fetches a single build with its jobs.
type BuildDescribeRequest struct {
	ID int64 `json:"id"`
}

// BuildDescribeResponse contains one build and its matrix legs.
type BuildDescribeResponse struct {
	Build BuildSummary `json:"build"`
	Jobs  []JobSummary `json:"jobs"`
}

// BuildCancelRequest cancels a build that has not started.
type BuildCancelRequest struct {
	ID int64 `json:"id"`
}

// BuildCancelResponse returns the canceled build.
type BuildCancelResponse struct {
	Build BuildSummary `json:"build"`
}

// BuildRetryRequest requeues a finished build.
type BuildRetryRequest struct {
	ID int64 `json:"id"`
}

// BuildRetryResponse returns the requeued build.
type BuildRetryResponse struct {
	Build BuildSummary `json:"build"`
}

// QueueClearRequest removes builds. FinishedOnly limits removal to builds
// in a terminal status.
type QueueClearRequest struct {
	FinishedOnly bool `json:"finished_only"`
}

// QueueClearResponse reports number of removed builds.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest reads lines from the daemon log, or from one job's command
// log when BuildID is set. A negative Offset asks for the last Limit lines.
// When Follow is set the server waits up to WaitMillis for new lines before
// answering, so clients can poll without busy-looping.
type LogTailRequest struct {
	BuildID    int64 `json:"build_id,omitempty"`
	JobNumber  int   `json:"job_number,omitempty"`
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis,omitempty"`
}

// LogTailResponse returns the lines read and the offset for the next call.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
	Path   string   `json:"path"`
}

// FromBuild converts a queue build into its wire representation.
func FromBuild(build *queue.Build) BuildSummary {
	if build == nil {
		return BuildSummary{}
	}
	return BuildSummary{
		ID:           build.ID,
		PipelinePath: build.PipelinePath,
		Status:       string(build.Status),
		ErrorMessage: build.ErrorMessage,
		CreatedAt:    formatTime(&build.CreatedAt),
		StartedAt:    formatTime(build.StartedAt),
		FinishedAt:   formatTime(build.FinishedAt),
	}
}

// FromJob converts a queue job into its wire representation.
func FromJob(job *queue.Job) JobSummary {
	if job == nil {
		return JobSummary{}
	}
	return JobSummary{
		ID:            job.ID,
		Number:        job.Number,
		Name:          job.Name,
		OS:            job.OS,
		Python:        job.Python,
		Status:        string(job.Status),
		Stage:         job.Stage,
		FailedCommand: job.FailedCommand,
		ErrorMessage:  job.ErrorMessage,
		LogPath:       job.LogPath,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
