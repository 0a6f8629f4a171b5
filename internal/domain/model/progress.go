package model

// ProgressReport is the result of probing an external system for evidence
// that a claimant is actively working on an issue.
type ProgressReport struct {
	HasPullRequestRef bool
	HasRecentCommit   bool
	Details           string
}

// Found reports whether any progress evidence was detected.
func (p ProgressReport) Found() bool {
	return p.HasPullRequestRef || p.HasRecentCommit
}
