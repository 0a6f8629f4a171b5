package driven

import (
	"context"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
)

// JobStore defines the driven port for the shared scheduled-job queue and
// the dead-letter sink.
type JobStore interface {
	// Due returns up to limit pending jobs whose RunAt is at or before now,
	// oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]model.ScheduledJob, error)

	// MarkDone marks a job as processed. Safe to call for a job another
	// worker already completed.
	MarkDone(ctx context.Context, jobID int64) error

	// RecordAttempt increments a job's attempt counter.
	RecordAttempt(ctx context.Context, jobID int64) error

	// MarkDead marks a job as dead after exhausted retries.
	MarkDead(ctx context.Context, jobID int64) error

	// AddDeadLetter persists an exhausted event or job for manual inspection.
	AddDeadLetter(ctx context.Context, dl model.DeadLetter) error
}
