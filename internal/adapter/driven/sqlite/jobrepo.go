package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.JobStore = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the JobStore port interface.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo backed by the given DB.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Due returns up to limit pending jobs whose run time has passed, oldest
// first.
func (r *JobRepo) Due(ctx context.Context, now time.Time, limit int) ([]model.ScheduledJob, error) {
	const query = `
		SELECT id, claim_id, run_at, status, attempts
		FROM scheduled_jobs
		WHERE status = 'pending' AND run_at <= ?
		ORDER BY run_at
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, now.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ScheduledJob
	for rows.Next() {
		var job model.ScheduledJob
		var runAt int64
		var status string

		if err := rows.Scan(&job.ID, &job.ClaimID, &runAt, &status, &job.Attempts); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.RunAt = time.UnixMilli(runAt).UTC()
		job.Status = model.JobStatus(status)
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due jobs: %w", err)
	}
	return jobs, nil
}

// MarkDone marks a job as processed. Safe for jobs another worker already
// completed.
func (r *JobRepo) MarkDone(ctx context.Context, jobID int64) error {
	return r.setStatus(ctx, jobID, model.JobStatusDone)
}

// MarkDead marks a job as dead after exhausted retries.
func (r *JobRepo) MarkDead(ctx context.Context, jobID int64) error {
	return r.setStatus(ctx, jobID, model.JobStatusDead)
}

func (r *JobRepo) setStatus(ctx context.Context, jobID int64, status model.JobStatus) error {
	const query = `UPDATE scheduled_jobs SET status = ? WHERE id = ? AND status = 'pending'`

	if _, err := r.db.Writer.ExecContext(ctx, query, string(status), jobID); err != nil {
		return fmt.Errorf("mark job %d %s: %w", jobID, status, err)
	}
	return nil
}

// RecordAttempt increments a job's attempt counter.
func (r *JobRepo) RecordAttempt(ctx context.Context, jobID int64) error {
	const query = `UPDATE scheduled_jobs SET attempts = attempts + 1 WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, jobID); err != nil {
		return fmt.Errorf("record job attempt %d: %w", jobID, err)
	}
	return nil
}

// AddDeadLetter persists an exhausted event or job for manual inspection.
func (r *JobRepo) AddDeadLetter(ctx context.Context, dl model.DeadLetter) error {
	const query = `
		INSERT INTO dead_letters (id, kind, payload, last_error, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		dl.ID, dl.Kind, dl.Payload, dl.LastError, dl.Attempts, dl.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert dead letter %s: %w", dl.ID, err)
	}
	return nil
}

// ListDeadLetters returns dead letters newest first, for manual inspection.
func (r *JobRepo) ListDeadLetters(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	const query = `
		SELECT id, kind, payload, last_error, attempts, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []model.DeadLetter
	for rows.Next() {
		var dl model.DeadLetter
		var createdAt string

		if err := rows.Scan(&dl.ID, &dl.Kind, &dl.Payload, &dl.LastError, &dl.Attempts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if dl.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse dead letter created_at: %w", err)
		}
		letters = append(letters, dl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return letters, nil
}
