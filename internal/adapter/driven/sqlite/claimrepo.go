package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ClaimStore = (*ClaimRepo)(nil)

// ClaimRepo is the SQLite implementation of the ClaimStore port interface.
// The single-writer connection serializes its transactions; the partial
// unique index on (repo_full_name, issue_number) WHERE status='active'
// enforces at most one Active claim per issue even if a caller races past
// the per-issue lock.
type ClaimRepo struct {
	db *DB
}

// NewClaimRepo creates a new ClaimRepo backed by the given DB.
func NewClaimRepo(db *DB) *ClaimRepo {
	return &ClaimRepo{db: db}
}

const claimColumns = `
	id, repo_full_name, issue_number, issue_id, claimant, claimant_id,
	comment_id, claim_text, confidence_score, status, nudge_count,
	claimed_at, last_activity_at, first_nudge_at, auto_release_at,
	release_reason, metadata`

// CreateActive inserts the claim, its ClaimDetected log entry, and the first
// scheduled check in a single transaction.
func (r *ClaimRepo) CreateActive(ctx context.Context, claim model.Claim, checkAt time.Time) (*model.Claim, error) {
	metadataJSON, err := marshalMetadata(claim.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create claim: %w", err)
	}
	defer tx.Rollback()

	const insertClaim = `
		INSERT INTO claims (
			repo_full_name, issue_number, issue_id, claimant, claimant_id,
			comment_id, claim_text, confidence_score, status, nudge_count,
			claimed_at, last_activity_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`
	res, err := tx.ExecContext(ctx, insertClaim,
		claim.RepoFullName, claim.IssueNumber, claim.IssueID,
		claim.Claimant, claim.ClaimantID, claim.CommentID, claim.ClaimText,
		claim.ConfidenceScore, string(model.ClaimStatusActive),
		claim.ClaimedAt.UTC(), claim.LastActivityAt.UTC(), metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim %s: %w", claim.IssueKey(), err)
	}

	claimID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("claim insert id: %w", err)
	}

	if err := appendActivity(ctx, tx, claimID, model.ActivityClaimDetected, claim.ClaimedAt, claim.Metadata); err != nil {
		return nil, err
	}

	const insertJob = `INSERT INTO scheduled_jobs (claim_id, run_at, status) VALUES (?, ?, 'pending')`
	if _, err := tx.ExecContext(ctx, insertJob, claimID, checkAt.UTC().UnixMilli()); err != nil {
		return nil, fmt.Errorf("schedule claim check %d: %w", claimID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create claim: %w", err)
	}

	created := claim
	created.ID = claimID
	created.Status = model.ClaimStatusActive
	return &created, nil
}

// GetActiveByIssue returns the issue's Active claim, or nil if none exists.
func (r *ClaimRepo) GetActiveByIssue(ctx context.Context, repoFullName string, issueNumber int) (*model.Claim, error) {
	query := `SELECT` + claimColumns + `
		FROM claims
		WHERE repo_full_name = ? AND issue_number = ? AND status = ?`

	claim, err := scanClaim(r.db.Reader.QueryRowContext(ctx, query, repoFullName, issueNumber, string(model.ClaimStatusActive)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active claim %s#%d: %w", repoFullName, issueNumber, err)
	}
	return claim, nil
}

// Get returns the claim by id, or nil if it does not exist.
func (r *ClaimRepo) Get(ctx context.Context, claimID int64) (*model.Claim, error) {
	query := `SELECT` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(r.db.Reader.QueryRowContext(ctx, query, claimID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim %d: %w", claimID, err)
	}
	return claim, nil
}

// Refresh updates claim text, score, metadata, and last_activity_at for a
// same-claimant re-claim.
func (r *ClaimRepo) Refresh(ctx context.Context, claimID int64, claimText string, score int, metadata map[string]string, at time.Time) error {
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	const query = `
		UPDATE claims
		SET claim_text = ?, confidence_score = ?, metadata = ?, last_activity_at = ?
		WHERE id = ? AND status = ?
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		claimText, score, metadataJSON, at.UTC(), claimID, string(model.ClaimStatusActive))
	if err != nil {
		return fmt.Errorf("refresh claim %d: %w", claimID, err)
	}
	return nil
}

// RecordProgress touches last_activity_at, logs ProgressDetected, and
// reschedules the pending check, iff the claim is still Active.
func (r *ClaimRepo) RecordProgress(ctx context.Context, claimID int64, at time.Time, nextCheck time.Time, metadata map[string]string) (bool, error) {
	const guard = `UPDATE claims SET last_activity_at = ? WHERE id = ? AND status = ?`

	return r.guardedTransition(ctx, claimID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, guard, at.UTC(), claimID, string(model.ClaimStatusActive))
	}, func(tx *sql.Tx) error {
		if err := appendActivity(ctx, tx, claimID, model.ActivityProgressDetected, at, metadata); err != nil {
			return err
		}
		return rescheduleCheck(ctx, tx, claimID, nextCheck)
	})
}

// RecordNudge increments nudge_count, sets first_nudge_at if unset, logs
// NudgeSent, and reschedules the pending check, iff the claim is still
// Active with the expected nudge count.
func (r *ClaimRepo) RecordNudge(ctx context.Context, claimID int64, expectedCount int, at time.Time, nextCheck time.Time, metadata map[string]string) (bool, error) {
	const guard = `
		UPDATE claims
		SET nudge_count = nudge_count + 1,
		    first_nudge_at = COALESCE(first_nudge_at, ?)
		WHERE id = ? AND status = ? AND nudge_count = ?
	`

	return r.guardedTransition(ctx, claimID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, guard, at.UTC(), claimID, string(model.ClaimStatusActive), expectedCount)
	}, func(tx *sql.Tx) error {
		if err := appendActivity(ctx, tx, claimID, model.ActivityNudgeSent, at, metadata); err != nil {
			return err
		}
		return rescheduleCheck(ctx, tx, claimID, nextCheck)
	})
}

// Release transitions Active -> Released, logs the release, and closes the
// claim's pending check. auto_release_at is stamped only for auto releases.
func (r *ClaimRepo) Release(ctx context.Context, claimID int64, reason string, logType model.ActivityType, at time.Time) (bool, error) {
	const guard = `
		UPDATE claims
		SET status = ?, release_reason = ?, auto_release_at = ?
		WHERE id = ? AND status = ?
	`

	var autoReleasedAt any
	if logType == model.ActivityAutoReleased {
		autoReleasedAt = at.UTC()
	}

	return r.guardedTransition(ctx, claimID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, guard,
			string(model.ClaimStatusReleased), reason, autoReleasedAt,
			claimID, string(model.ClaimStatusActive))
	}, func(tx *sql.Tx) error {
		if err := appendActivity(ctx, tx, claimID, logType, at, map[string]string{"reason": reason}); err != nil {
			return err
		}
		return closePendingChecks(ctx, tx, claimID)
	})
}

// Complete transitions Active -> Completed, logs it, and closes the claim's
// pending check.
func (r *ClaimRepo) Complete(ctx context.Context, claimID int64, at time.Time) (bool, error) {
	const guard = `UPDATE claims SET status = ? WHERE id = ? AND status = ?`

	return r.guardedTransition(ctx, claimID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, guard,
			string(model.ClaimStatusCompleted), claimID, string(model.ClaimStatusActive))
	}, func(tx *sql.Tx) error {
		if err := appendActivity(ctx, tx, claimID, model.ActivityClaimCompleted, at, nil); err != nil {
			return err
		}
		return closePendingChecks(ctx, tx, claimID)
	})
}

// ListActivity returns a claim's audit log, oldest first.
func (r *ClaimRepo) ListActivity(ctx context.Context, claimID int64) ([]model.ActivityLogEntry, error) {
	const query = `
		SELECT id, claim_id, activity_type, timestamp, metadata
		FROM activity_log
		WHERE claim_id = ?
		ORDER BY id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("query activity log %d: %w", claimID, err)
	}
	defer rows.Close()

	var entries []model.ActivityLogEntry
	for rows.Next() {
		var entry model.ActivityLogEntry
		var activityType, timestamp, metadataJSON string

		if err := rows.Scan(&entry.ID, &entry.ClaimID, &activityType, &timestamp, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}

		entry.Type = model.ActivityType(activityType)
		if entry.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("parse activity timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal activity metadata: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity log %d: %w", claimID, err)
	}
	return entries, nil
}

// guardedTransition runs a state-guarded UPDATE and, only when it affected a
// row, the dependent effects, all in one transaction. Returns whether the
// guard held.
func (r *ClaimRepo) guardedTransition(ctx context.Context, claimID int64, guard func(*sql.Tx) (sql.Result, error), effects func(*sql.Tx) error) (bool, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transition claim %d: %w", claimID, err)
	}
	defer tx.Rollback()

	res, err := guard(tx)
	if err != nil {
		return false, fmt.Errorf("transition claim %d: %w", claimID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected claim %d: %w", claimID, err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := effects(tx); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transition claim %d: %w", claimID, err)
	}
	return true, nil
}

func appendActivity(ctx context.Context, tx *sql.Tx, claimID int64, activityType model.ActivityType, at time.Time, metadata map[string]string) error {
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	const query = `INSERT INTO activity_log (claim_id, activity_type, timestamp, metadata) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, claimID, string(activityType), at.UTC(), metadataJSON); err != nil {
		return fmt.Errorf("append activity %s claim %d: %w", activityType, claimID, err)
	}
	return nil
}

// rescheduleCheck upserts the claim's single pending job to the new run time.
func rescheduleCheck(ctx context.Context, tx *sql.Tx, claimID int64, runAt time.Time) error {
	const query = `
		INSERT INTO scheduled_jobs (claim_id, run_at, status) VALUES (?, ?, 'pending')
		ON CONFLICT (claim_id) WHERE status = 'pending'
		DO UPDATE SET run_at = excluded.run_at, attempts = 0
	`
	if _, err := tx.ExecContext(ctx, query, claimID, runAt.UTC().UnixMilli()); err != nil {
		return fmt.Errorf("reschedule check claim %d: %w", claimID, err)
	}
	return nil
}

func closePendingChecks(ctx context.Context, tx *sql.Tx, claimID int64) error {
	const query = `UPDATE scheduled_jobs SET status = 'done' WHERE claim_id = ? AND status = 'pending'`
	if _, err := tx.ExecContext(ctx, query, claimID); err != nil {
		return fmt.Errorf("close pending checks claim %d: %w", claimID, err)
	}
	return nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(raw), nil
}

func scanClaim(s scanner) (*model.Claim, error) {
	var claim model.Claim
	var status, claimedAt, lastActivityAt, metadataJSON string
	var firstNudgeAt, autoReleaseAt sql.NullString

	err := s.Scan(
		&claim.ID, &claim.RepoFullName, &claim.IssueNumber, &claim.IssueID,
		&claim.Claimant, &claim.ClaimantID, &claim.CommentID, &claim.ClaimText,
		&claim.ConfidenceScore, &status, &claim.NudgeCount,
		&claimedAt, &lastActivityAt, &firstNudgeAt, &autoReleaseAt,
		&claim.ReleaseReason, &metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	claim.Status = model.ClaimStatus(status)

	if claim.ClaimedAt, err = parseTime(claimedAt); err != nil {
		return nil, fmt.Errorf("parse claimed_at: %w", err)
	}
	if claim.LastActivityAt, err = parseTime(lastActivityAt); err != nil {
		return nil, fmt.Errorf("parse last_activity_at: %w", err)
	}
	if firstNudgeAt.Valid {
		t, err := parseTime(firstNudgeAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse first_nudge_at: %w", err)
		}
		claim.FirstNudgeAt = &t
	}
	if autoReleaseAt.Valid {
		t, err := parseTime(autoReleaseAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse auto_release_at: %w", err)
		}
		claim.AutoReleaseAt = &t
	}

	if err := json.Unmarshal([]byte(metadataJSON), &claim.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal claim metadata: %w", err)
	}

	return &claim, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
