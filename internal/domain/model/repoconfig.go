package model

import "time"

// Defaults applied when a repository has no stored policy row.
const (
	DefaultGracePeriod    = 7 * 24 * time.Hour
	DefaultMaxNudges      = 2
	DefaultClaimThreshold = 75
)

// RepositoryConfig is the per-repository escalation policy. It is read-only
// to the coordinator and scheduler.
type RepositoryConfig struct {
	RepoFullName   string
	GracePeriod    time.Duration
	MaxNudges      int
	ClaimThreshold int // Minimum matcher score, 0-100, for a comment to count as a claim.
}

// DefaultRepositoryConfig returns the policy used for repositories without
// an explicit configuration row.
func DefaultRepositoryConfig(repoFullName string) RepositoryConfig {
	return RepositoryConfig{
		RepoFullName:   repoFullName,
		GracePeriod:    DefaultGracePeriod,
		MaxNudges:      DefaultMaxNudges,
		ClaimThreshold: DefaultClaimThreshold,
	}
}
