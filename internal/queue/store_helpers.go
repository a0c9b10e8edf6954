package queue

import (
	"database/sql"
	"errors"
	"time"
)

const buildColumns = "id, pipeline_path, pipeline_yaml, status, error_message, created_at, updated_at, started_at, finished_at"

const jobColumns = "id, build_id, number, name, os, python, env_json, status, stage, failed_command, error_message, log_path, created_at, updated_at, started_at, finished_at"

func scanBuild(scanner interface{ Scan(dest ...any) error }) (*Build, error) {
	var (
		id           int64
		pipelinePath sql.NullString
		pipelineYAML string
		statusStr    string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&pipelinePath,
		&pipelineYAML,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	build := &Build{
		ID:           id,
		PipelinePath: pipelinePath.String,
		PipelineYAML: pipelineYAML,
		Status:       BuildStatus(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		build.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		build.UpdatedAt = updated
	}
	build.StartedAt = parseNullableTime(startedRaw)
	build.FinishedAt = parseNullableTime(finishedRaw)
	return build, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		buildID       int64
		number        int
		name          string
		osName        string
		python        sql.NullString
		envJSON       sql.NullString
		statusStr     string
		stage         sql.NullString
		failedCommand sql.NullString
		errorMessage  sql.NullString
		logPath       sql.NullString
		createdRaw    string
		updatedRaw    string
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&buildID,
		&number,
		&name,
		&osName,
		&python,
		&envJSON,
		&statusStr,
		&stage,
		&failedCommand,
		&errorMessage,
		&logPath,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		BuildID:       buildID,
		Number:        number,
		Name:          name,
		OS:            osName,
		Python:        python.String,
		EnvJSON:       envJSON.String,
		Status:        JobStatus(statusStr),
		Stage:         stage.String,
		FailedCommand: failedCommand.String,
		ErrorMessage:  errorMessage.String,
		LogPath:       logPath.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.FinishedAt = parseNullableTime(finishedRaw)
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
