// Package postgres provides the Postgres-backed job status store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tautaras/review-crawler/internal/reviews"
)

// Expected schema:
//
//	CREATE TABLE extraction_jobs (
//	    id          TEXT PRIMARY KEY,
//	    url         TEXT NOT NULL,
//	    platform    TEXT NOT NULL,
//	    fingerprint TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    pages       INT NOT NULL DEFAULT 0,
//	    reviews     INT NOT NULL DEFAULT 0,
//	    error_text  TEXT NOT NULL DEFAULT '',
//	    submitted_at TIMESTAMPTZ NOT NULL,
//	    started_at   TIMESTAMPTZ,
//	    finished_at  TIMESTAMPTZ
//	);

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool used for job rows.
type Config struct {
	DSN      string
	MaxConns int32
}

// JobStore persists job status rows in Postgres.
type JobStore struct {
	pool pgxPool
}

// New creates a Postgres-backed JobStore using the provided config.
func New(ctx context.Context, cfg Config) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jobstore.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewWithPool constructs a JobStore from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job reviews.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_jobs (id, url, platform, fingerprint, status, pages, reviews, error_text, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.URL, job.Platform, job.Fingerprint, string(job.Status),
		job.Progress.Pages, job.Progress.Reviews, job.ErrorText, job.Submitted,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateStatus updates status, progress, and error text. Start and finish
// timestamps are stamped server-side on the corresponding transitions.
func (s *JobStore) UpdateStatus(
	ctx context.Context,
	jobID string,
	status reviews.JobStatus,
	progress reviews.JobProgress,
	errText string,
) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs
		 SET status = $2,
		     pages = $3,
		     reviews = $4,
		     error_text = $5,
		     started_at = CASE WHEN $2 = 'STARTED' AND started_at IS NULL THEN NOW() ELSE started_at END,
		     finished_at = CASE WHEN $2 IN ('SUCCESS', 'FAILURE') THEN NOW() ELSE finished_at END
		 WHERE id = $1`,
		jobID, string(status), progress.Pages, progress.Reviews, errText,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, reviews.ErrNotFound)
	}
	return nil
}

// GetJob fetches a job row by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (reviews.Job, error) {
	var job reviews.Job
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, platform, fingerprint, status, pages, reviews, error_text, submitted_at, started_at, finished_at
		 FROM extraction_jobs WHERE id = $1`,
		jobID,
	).Scan(
		&job.ID, &job.URL, &job.Platform, &job.Fingerprint, &status,
		&job.Progress.Pages, &job.Progress.Reviews, &job.ErrorText,
		&job.Submitted, &job.Started, &job.Finished,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return reviews.Job{}, fmt.Errorf("job %s: %w", jobID, reviews.ErrNotFound)
	}
	if err != nil {
		return reviews.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = reviews.JobStatus(status)
	return job, nil
}
