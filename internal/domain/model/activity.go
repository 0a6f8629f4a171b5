package model

import "time"

// ActivityType identifies what happened to a claim.
type ActivityType string

const (
	ActivityClaimDetected    ActivityType = "claim_detected"
	ActivityProgressDetected ActivityType = "progress_detected"
	ActivityNudgeSent        ActivityType = "nudge_sent"
	ActivityAutoReleased     ActivityType = "auto_released"
	ActivityManualRelease    ActivityType = "manual_release"
	ActivityClaimCompleted   ActivityType = "claim_completed"
)

// ActivityLogEntry is an append-only audit record for a claim. Entries are
// immutable once written; the store exposes no update or delete path.
type ActivityLogEntry struct {
	ID        int64
	ClaimID   int64
	Type      ActivityType
	Timestamp time.Time
	Metadata  map[string]string
}
