package model

import "time"

// JobStatus represents the queue state of a scheduled job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusDone    JobStatus = "done"
	JobStatusDead    JobStatus = "dead"
)

// ScheduledJob is a timer entry for a claim check. Workers pick up jobs whose
// RunAt has passed. Delivery is at-least-once: the same job may fire more
// than once, so the transition it triggers must be state-guarded.
type ScheduledJob struct {
	ID       int64
	ClaimID  int64
	RunAt    time.Time
	Status   JobStatus
	Attempts int
}

// DeadLetter records an event or job whose retries were exhausted. Kept for
// manual inspection; never retried automatically.
type DeadLetter struct {
	ID        string // uuid
	Kind      string
	Payload   string
	LastError string
	Attempts  int
	CreatedAt time.Time
}
