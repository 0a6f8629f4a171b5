package driven

import (
	"context"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
)

// ClaimStore defines the driven port for claim persistence.
//
// CreateActive commits the claim, its ClaimDetected log entry, and the first
// scheduled check as a single transaction; on any failure none of the three
// are visible. The guarded mutators (RecordProgress, RecordNudge, Release,
// Complete) re-check the claim's persisted status inside the same statement
// that mutates it and report whether the guard held, so at-least-once job
// delivery can never double-apply a transition.
type ClaimStore interface {
	// CreateActive inserts claim with status Active, appends a ClaimDetected
	// log entry, and schedules a check job at checkAt. Returns the stored
	// claim with its assigned ID.
	CreateActive(ctx context.Context, claim model.Claim, checkAt time.Time) (*model.Claim, error)

	// GetActiveByIssue returns the issue's Active claim, or nil if none.
	GetActiveByIssue(ctx context.Context, repoFullName string, issueNumber int) (*model.Claim, error)

	// Get returns the claim by id, or nil if it does not exist.
	Get(ctx context.Context, claimID int64) (*model.Claim, error)

	// Refresh updates claim text, confidence score, metadata, and
	// last_activity_at for a same-claimant re-claim. No status change.
	Refresh(ctx context.Context, claimID int64, claimText string, score int, metadata map[string]string, at time.Time) error

	// RecordProgress sets last_activity_at, appends a ProgressDetected entry,
	// and reschedules the check at nextCheck, iff the claim is still Active.
	RecordProgress(ctx context.Context, claimID int64, at time.Time, nextCheck time.Time, metadata map[string]string) (bool, error)

	// RecordNudge increments nudge_count, sets first_nudge_at if unset,
	// appends a NudgeSent entry, and reschedules the check at nextCheck,
	// iff the claim is still Active and its nudge_count equals expectedCount.
	// The count guard makes a scheduled firing racing a manual nudge lose.
	RecordNudge(ctx context.Context, claimID int64, expectedCount int, at time.Time, nextCheck time.Time, metadata map[string]string) (bool, error)

	// Release transitions Active -> Released with the given reason, appends
	// the log entry of the given type (AutoReleased or ManualRelease), and
	// closes the claim's pending scheduled jobs. Terminal: no further check.
	Release(ctx context.Context, claimID int64, reason string, logType model.ActivityType, at time.Time) (bool, error)

	// Complete transitions Active -> Completed, appends a ClaimCompleted
	// entry, and closes the claim's pending scheduled jobs. Terminal.
	Complete(ctx context.Context, claimID int64, at time.Time) (bool, error)

	// ListActivity returns a claim's audit log, oldest first.
	ListActivity(ctx context.Context, claimID int64) ([]model.ActivityLogEntry, error)
}
