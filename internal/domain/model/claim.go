package model

import "time"

// ClaimStatus represents the lifecycle state of a claim. Transitions are
// forward-only: an Active claim may become Released or Completed, both of
// which are terminal.
type ClaimStatus string

const (
	ClaimStatusActive    ClaimStatus = "active"
	ClaimStatusReleased  ClaimStatus = "released"
	ClaimStatusCompleted ClaimStatus = "completed"
)

// IsTerminal reports whether no further transitions are possible.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusReleased || s == ClaimStatusCompleted
}

// Release reasons recorded on terminal claims.
const (
	ReleaseReasonMaxNudges = "max_nudges_exceeded"
	ReleaseReasonManual    = "manual_release"
)

// Claim represents a contributor's recorded assertion that they intend to
// work on an issue. At most one claim per issue may be Active at a time;
// the claim store enforces this invariant.
type Claim struct {
	ID              int64
	RepoFullName    string
	IssueNumber     int
	IssueID         int64 // Upstream numeric issue id.
	Claimant        string
	ClaimantID      int64
	CommentID       int64 // Comment that triggered the claim; dedupe key for re-delivery.
	ClaimText       string
	ConfidenceScore int // Final matcher score, 0-100.
	Status          ClaimStatus
	NudgeCount      int
	ClaimedAt       time.Time
	LastActivityAt  time.Time
	FirstNudgeAt    *time.Time
	AutoReleaseAt   *time.Time
	ReleaseReason   string
	Metadata        map[string]string // Context metadata from the matcher (boosts applied, etc).
}

// IssueKey returns the "owner/repo#number" key identifying the claimed issue.
// It is the scope of the per-issue distributed lock.
func (c Claim) IssueKey() string {
	return IssueKey(c.RepoFullName, c.IssueNumber)
}
