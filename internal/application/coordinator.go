package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// OutcomeKind classifies the coordinator's result for one comment event.
type OutcomeKind string

const (
	// OutcomeRecorded means a new Active claim was created.
	OutcomeRecorded OutcomeKind = "recorded"
	// OutcomeRefreshed means the commenter already held the Active claim
	// and its text, score, and activity timestamp were refreshed.
	OutcomeRefreshed OutcomeKind = "refreshed"
	// OutcomeDuplicate means the exact comment was already processed
	// (at-least-once re-delivery); nothing changed.
	OutcomeDuplicate OutcomeKind = "duplicate"
	// OutcomeConflict means a different claimant holds the Active claim.
	// Expected business outcome, not an error; nothing changed.
	OutcomeConflict OutcomeKind = "conflict"
	// OutcomeProgress means the comment was a progress update from the
	// current claimant; the escalation timer was reset.
	OutcomeProgress OutcomeKind = "progress"
	// OutcomeNoClaim means the comment scored below threshold or matched
	// nothing actionable.
	OutcomeNoClaim OutcomeKind = "no_claim"
)

// CommentOutcome is the coordinator's deterministic result for one event.
type CommentOutcome struct {
	Kind                OutcomeKind
	Claim               *model.Claim
	ConflictingClaimant string
	Analysis            Analysis
}

// ClaimCoordinator applies exactly one deterministic state change per
// comment event: it serializes per-issue work behind the distributed lock,
// classifies the comment, and resolves claim creation conflicts.
type ClaimCoordinator struct {
	locks      *LockManager
	claims     driven.ClaimStore
	configs    driven.RepoConfigStore
	escalation *EscalationService
	now        func() time.Time
}

// NewClaimCoordinator creates a coordinator with all required dependencies.
func NewClaimCoordinator(
	locks *LockManager,
	claims driven.ClaimStore,
	configs driven.RepoConfigStore,
	escalation *EscalationService,
) *ClaimCoordinator {
	return &ClaimCoordinator{
		locks:      locks,
		claims:     claims,
		configs:    configs,
		escalation: escalation,
		now:        time.Now,
	}
}

// HandleComment processes one inbound comment event under the issue's lock.
// ErrLockUnavailable and persistence failures are returned for the caller's
// retry policy; every other result is a CommentOutcome. The lock is released
// on all paths, including errors.
func (c *ClaimCoordinator) HandleComment(ctx context.Context, event model.CommentEvent) (CommentOutcome, error) {
	cfg, err := c.configs.GetOrDefault(ctx, event.RepoFullName)
	if err != nil {
		return CommentOutcome{}, fmt.Errorf("load repo config %s: %w", event.RepoFullName, err)
	}

	issueKey := event.IssueKey()
	token, err := c.locks.Acquire(ctx, issueKey)
	if err != nil {
		return CommentOutcome{}, err
	}
	defer c.locks.Release(issueKey, token)

	analysis := AnalyzeComment(event.Body, AnalysisContext{
		ReplyToMaintainer: event.ReplyToMaintainer,
		CommenterAssigned: event.IsCommenterAssigned(),
	}, cfg.ClaimThreshold)

	switch {
	case analysis.IsProgressUpdate:
		return c.handleProgress(ctx, event, cfg, analysis)
	case analysis.IsClaim:
		return c.handleClaim(ctx, event, cfg, analysis)
	default:
		slog.Debug("comment below threshold",
			"issue", issueKey,
			"commenter", event.Commenter.Username,
			"score", analysis.FinalScore,
			"threshold", cfg.ClaimThreshold,
		)
		return CommentOutcome{Kind: OutcomeNoClaim, Analysis: analysis}, nil
	}
}

// handleProgress resets the escalation timer when the current claimant
// reports progress in a comment. Progress comments from anyone else change
// nothing: a progress-update match never creates a claim.
func (c *ClaimCoordinator) handleProgress(ctx context.Context, event model.CommentEvent, cfg model.RepositoryConfig, analysis Analysis) (CommentOutcome, error) {
	claim, err := c.claims.GetActiveByIssue(ctx, event.RepoFullName, event.IssueNumber)
	if err != nil {
		return CommentOutcome{}, fmt.Errorf("lookup active claim %s: %w", event.IssueKey(), err)
	}
	if claim == nil || claim.Claimant != event.Commenter.Username {
		return CommentOutcome{Kind: OutcomeNoClaim, Analysis: analysis}, nil
	}

	applied, err := c.escalation.ResetTimer(ctx, claim.ID, cfg, map[string]string{
		"source":     "comment",
		"comment_id": strconv.FormatInt(event.CommentID, 10),
	})
	if err != nil {
		return CommentOutcome{}, err
	}
	if !applied {
		// Claim left Active between lookup and reset.
		return CommentOutcome{Kind: OutcomeNoClaim, Analysis: analysis}, nil
	}

	slog.Info("progress comment recorded",
		"issue", event.IssueKey(),
		"claim", claim.ID,
		"claimant", claim.Claimant,
	)
	return CommentOutcome{Kind: OutcomeProgress, Claim: claim, Analysis: analysis}, nil
}

// handleClaim resolves a qualifying claim signal against the issue's current
// Active claim: create, refresh, dedupe, or surface the conflict.
func (c *ClaimCoordinator) handleClaim(ctx context.Context, event model.CommentEvent, cfg model.RepositoryConfig, analysis Analysis) (CommentOutcome, error) {
	existing, err := c.claims.GetActiveByIssue(ctx, event.RepoFullName, event.IssueNumber)
	if err != nil {
		return CommentOutcome{}, fmt.Errorf("lookup active claim %s: %w", event.IssueKey(), err)
	}

	if existing == nil {
		return c.createClaim(ctx, event, cfg, analysis)
	}

	if existing.Claimant != event.Commenter.Username {
		slog.Info("claim conflict",
			"issue", event.IssueKey(),
			"claimant", existing.Claimant,
			"challenger", event.Commenter.Username,
		)
		return CommentOutcome{
			Kind:                OutcomeConflict,
			Claim:               existing,
			ConflictingClaimant: existing.Claimant,
			Analysis:            analysis,
		}, nil
	}

	if existing.CommentID == event.CommentID {
		return CommentOutcome{Kind: OutcomeDuplicate, Claim: existing, Analysis: analysis}, nil
	}

	now := c.now().UTC()
	err = c.claims.Refresh(ctx, existing.ID, event.Body, analysis.FinalScore, analysisMetadata(analysis, event), now)
	if err != nil {
		return CommentOutcome{}, fmt.Errorf("refresh claim %d: %w", existing.ID, err)
	}

	slog.Info("claim refreshed", "issue", event.IssueKey(), "claim", existing.ID, "claimant", existing.Claimant)
	return CommentOutcome{Kind: OutcomeRefreshed, Claim: existing, Analysis: analysis}, nil
}

// createClaim atomically inserts the Active claim, its ClaimDetected audit
// entry, and the first scheduled check. The three effects commit as one
// transaction or not at all.
func (c *ClaimCoordinator) createClaim(ctx context.Context, event model.CommentEvent, cfg model.RepositoryConfig, analysis Analysis) (CommentOutcome, error) {
	now := c.now().UTC()
	claim := model.Claim{
		RepoFullName:    event.RepoFullName,
		IssueNumber:     event.IssueNumber,
		IssueID:         event.IssueID,
		Claimant:        event.Commenter.Username,
		ClaimantID:      event.Commenter.UserID,
		CommentID:       event.CommentID,
		ClaimText:       event.Body,
		ConfidenceScore: analysis.FinalScore,
		Status:          model.ClaimStatusActive,
		ClaimedAt:       now,
		LastActivityAt:  now,
		Metadata:        analysisMetadata(analysis, event),
	}

	created, err := c.claims.CreateActive(ctx, claim, now.Add(cfg.GracePeriod))
	if err != nil {
		return CommentOutcome{}, fmt.Errorf("create claim %s: %w", event.IssueKey(), err)
	}

	slog.Info("claim recorded",
		"issue", event.IssueKey(),
		"claim", created.ID,
		"claimant", created.Claimant,
		"score", created.ConfidenceScore,
		"check_at", now.Add(cfg.GracePeriod),
	)
	return CommentOutcome{Kind: OutcomeRecorded, Claim: created, Analysis: analysis}, nil
}

func analysisMetadata(analysis Analysis, event model.CommentEvent) map[string]string {
	return map[string]string{
		"tier":       string(analysis.Tier),
		"base":       strconv.Itoa(analysis.BaseConfidence),
		"boost":      strconv.Itoa(analysis.Boost),
		"comment_id": strconv.FormatInt(event.CommentID, 10),
	}
}
