package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"conveyor/internal/config"
)

// Store manages build and job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS builds (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            pipeline_path TEXT,
            pipeline_yaml TEXT NOT NULL,
            status TEXT NOT NULL,
            error_message TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            started_at TEXT,
            finished_at TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS jobs (
            id TEXT PRIMARY KEY,
            build_id INTEGER NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
            number INTEGER NOT NULL,
            name TEXT NOT NULL,
            os TEXT NOT NULL,
            python TEXT,
            env_json TEXT,
            status TEXT NOT NULL,
            stage TEXT,
            failed_command TEXT,
            error_message TEXT,
            log_path TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            started_at TEXT,
            finished_at TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_build ON jobs(build_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_build_number ON jobs(build_id, number)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewBuild inserts a build awaiting matrix planning and execution.
func (s *Store) NewBuild(ctx context.Context, pipelinePath, pipelineYAML string) (*Build, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO builds (pipeline_path, pipeline_yaml, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		nullableString(pipelinePath),
		pipelineYAML,
		BuildCreated,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert build: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetBuild(ctx, id)
}

// GetBuild fetches a build by identifier. Returns nil when absent.
func (s *Store) GetBuild(ctx context.Context, id int64) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = ?`, id)
	build, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get build: %w", err)
	}
	return build, nil
}

// UpdateBuild persists changes to an existing build.
func (s *Store) UpdateBuild(ctx context.Context, build *Build) error {
	if build == nil {
		return errors.New("build is nil")
	}
	build.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE builds
         SET pipeline_path = ?, pipeline_yaml = ?, status = ?, error_message = ?,
             updated_at = ?, started_at = ?, finished_at = ?
         WHERE id = ?`,
		nullableString(build.PipelinePath),
		build.PipelineYAML,
		build.Status,
		nullableString(build.ErrorMessage),
		build.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(build.StartedAt),
		nullableTime(build.FinishedAt),
		build.ID,
	)
	if err != nil {
		return fmt.Errorf("update build: %w", err)
	}
	return nil
}

// ListBuilds returns builds filtered by status set (or all builds when no
// status is provided), oldest first.
func (s *Store) ListBuilds(ctx context.Context, statuses ...BuildStatus) ([]*Build, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + buildColumns + ` FROM builds`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		build, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, build)
	}
	return builds, rows.Err()
}

// NextCreatedBuild returns the oldest build still awaiting execution.
func (s *Store) NextCreatedBuild(ctx context.Context) (*Build, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+buildColumns+` FROM builds WHERE status = ? ORDER BY id LIMIT 1`,
		BuildCreated,
	)
	build, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next created build: %w", err)
	}
	return build, nil
}

// InsertJob persists a planned matrix job.
func (s *Store) InsertJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = JobCreated
	}
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, build_id, number, name, os, python, env_json, status, stage,
            failed_command, error_message, log_path, created_at, updated_at,
            started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.BuildID,
		job.Number,
		job.Name,
		job.OS,
		nullableString(job.Python),
		nullableString(job.EnvJSON),
		job.Status,
		nullableString(job.Stage),
		nullableString(job.FailedCommand),
		nullableString(job.ErrorMessage),
		nullableString(job.LogPath),
		timestamp,
		timestamp,
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by identifier. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = ?, failed_command = ?, error_message = ?,
             log_path = ?, updated_at = ?, started_at = ?, finished_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.Stage),
		nullableString(job.FailedCommand),
		nullableString(job.ErrorMessage),
		nullableString(job.LogPath),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// JobsForBuild returns a build's jobs ordered by matrix leg number.
func (s *Store) JobsForBuild(ctx context.Context, buildID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE build_id = ? ORDER BY number`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs for build: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJobsForBuild removes a build's jobs; used when retrying a build so
// planning starts from a clean slate.
func (s *Store) DeleteJobsForBuild(ctx context.Context, buildID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE build_id = ?`, buildID)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetInFlight marks builds and jobs left running by a previous daemon
// instance as errored. Returns the number of affected builds.
func (s *Store) ResetInFlight(ctx context.Context) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE status IN (?, ?)`,
		JobErrored, DaemonStopReason, timestamp, timestamp,
		JobCreated, JobRunning,
	); err != nil {
		return 0, fmt.Errorf("reset in-flight jobs: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE builds SET status = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE status = ?`,
		BuildErrored, DaemonStopReason, timestamp, timestamp,
		BuildRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-flight builds: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all builds and their jobs. Returns the number of removed builds.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM builds`)
	if err != nil {
		return 0, fmt.Errorf("clear builds: %w", err)
	}
	return res.RowsAffected()
}

// ClearFinished removes builds that reached a terminal status.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM builds WHERE status IN (?, ?, ?, ?)`,
		BuildPassed, BuildFailed, BuildErrored, BuildCanceled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished builds: %w", err)
	}
	return res.RowsAffected()
}

// Summary aggregates build counts per lifecycle state.
func (s *Store) Summary(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM builds GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("summarize builds: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch BuildStatus(status) {
		case BuildCreated:
			summary.Created += count
		case BuildRunning:
			summary.Running += count
		case BuildPassed:
			summary.Passed += count
		case BuildFailed:
			summary.Failed += count
		case BuildErrored:
			summary.Errored += count
		case BuildCanceled:
			summary.Canceled += count
		}
	}
	return summary, rows.Err()
}
