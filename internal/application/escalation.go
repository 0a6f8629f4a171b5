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

// EscalationService implements the nudge/progress/auto-release state machine.
// It consumes due claim-check jobs from the shared queue on a ticker and
// applies at most one transition per firing. Every transition is guarded by
// a compare-and-set on the claim's persisted status, so a stale firing (the
// claim already left Active) is a no-op, never an error.
type EscalationService struct {
	claims   driven.ClaimStore
	jobs     driven.JobStore
	configs  driven.RepoConfigStore
	probe    driven.ProgressProbe
	notifier driven.Notifier
	mutator  driven.IssueMutator
	retry    *RetryPolicy
	interval time.Duration
	batch    int
	now      func() time.Time
}

// NewEscalationService creates an EscalationService with all required
// dependencies. interval is how often the due-job scan runs.
func NewEscalationService(
	claims driven.ClaimStore,
	jobs driven.JobStore,
	configs driven.RepoConfigStore,
	probe driven.ProgressProbe,
	notifier driven.Notifier,
	mutator driven.IssueMutator,
	retry *RetryPolicy,
	interval time.Duration,
) *EscalationService {
	return &EscalationService{
		claims:   claims,
		jobs:     jobs,
		configs:  configs,
		probe:    probe,
		notifier: notifier,
		mutator:  mutator,
		retry:    retry,
		interval: interval,
		batch:    50,
		now:      time.Now,
	}
}

// Start runs the scan loop until the context is canceled. An immediate scan
// runs first so restarts pick up overdue work without waiting an interval.
func (s *EscalationService) Start(ctx context.Context) {
	if err := s.ProcessDue(ctx); err != nil {
		slog.Error("initial escalation scan failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("escalation service stopped")
			return
		case <-ticker.C:
			if err := s.ProcessDue(ctx); err != nil {
				slog.Error("escalation scan failed", "error", err)
			}
		}
	}
}

// ProcessDue fires every due claim-check job once. Each firing runs under
// the bounded retry policy; exhausted jobs are marked dead and dead-lettered.
func (s *EscalationService) ProcessDue(ctx context.Context) error {
	due, err := s.jobs.Due(ctx, s.now().UTC(), s.batch)
	if err != nil {
		return fmt.Errorf("list due jobs: %w", err)
	}

	for _, job := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.jobs.RecordAttempt(ctx, job.ID); err != nil {
			slog.Error("record job attempt failed", "job", job.ID, "error", err)
		}

		payload := fmt.Sprintf(`{"job_id":%d,"claim_id":%d}`, job.ID, job.ClaimID)
		var done bool
		err := s.retry.Execute(ctx, "claim_check", payload, func(ctx context.Context) error {
			var fireErr error
			done, fireErr = s.fire(ctx, job.ClaimID)
			return fireErr
		})
		if err != nil {
			if markErr := s.jobs.MarkDead(ctx, job.ID); markErr != nil {
				slog.Error("mark job dead failed", "job", job.ID, "error", markErr)
			}
			continue
		}

		// Non-terminal transitions reschedule the claim's pending job row in
		// their own transaction; marking it done here would cancel the next
		// check. Terminal and stale outcomes close the job out.
		if done {
			if err := s.jobs.MarkDone(ctx, job.ID); err != nil {
				slog.Error("mark job done failed", "job", job.ID, "error", err)
			}
		}
	}

	if len(due) > 0 {
		slog.Debug("escalation scan complete", "fired", len(due))
	}
	return nil
}

// fire applies the state machine for one claim: progress resets the timer,
// otherwise nudge until the budget is spent, then auto-release. The returned
// bool reports whether the triggering job should be closed out; transitions
// that rescheduled the claim's pending job return false so the next check
// survives.
func (s *EscalationService) fire(ctx context.Context, claimID int64) (bool, error) {
	claim, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return false, fmt.Errorf("load claim %d: %w", claimID, err)
	}
	if claim == nil {
		slog.Warn("claim check fired for missing claim", "claim", claimID)
		return true, nil
	}
	if claim.Status != model.ClaimStatusActive {
		slog.Debug("stale claim check, skipping", "claim", claimID, "status", claim.Status)
		return true, nil
	}

	cfg, err := s.configs.GetOrDefault(ctx, claim.RepoFullName)
	if err != nil {
		return false, fmt.Errorf("load repo config %s: %w", claim.RepoFullName, err)
	}

	report, err := s.probe.CheckProgress(ctx, *claim, claim.LastActivityAt)
	if err != nil {
		return false, fmt.Errorf("progress probe %s: %w", claim.IssueKey(), err)
	}

	if report.Found() {
		applied, err := s.ResetTimer(ctx, claimID, cfg, map[string]string{
			"source":           "probe",
			"pull_request_ref": strconv.FormatBool(report.HasPullRequestRef),
			"recent_commit":    strconv.FormatBool(report.HasRecentCommit),
		})
		if err != nil {
			return false, err
		}
		if applied {
			slog.Info("progress detected, timer reset",
				"issue", claim.IssueKey(), "claim", claimID, "details", report.Details)
		}
		return false, nil
	}

	if claim.NudgeCount < cfg.MaxNudges {
		_, err := s.nudge(ctx, *claim, cfg)
		return false, err
	}
	if err := s.autoRelease(ctx, *claim); err != nil {
		return false, err
	}
	return true, nil
}

// ResetTimer records progress on an Active claim and reschedules its check
// at now + grace period. Reports whether the claim was still Active.
func (s *EscalationService) ResetTimer(ctx context.Context, claimID int64, cfg model.RepositoryConfig, metadata map[string]string) (bool, error) {
	now := s.now().UTC()
	applied, err := s.claims.RecordProgress(ctx, claimID, now, now.Add(cfg.GracePeriod), metadata)
	if err != nil {
		return false, fmt.Errorf("record progress claim %d: %w", claimID, err)
	}
	return applied, nil
}

// nudge sends one reminder and reschedules. The persisted transition commits
// before the notification goes out: a notifier failure never rolls back the
// nudge count. Reports whether this call won the state guard.
func (s *EscalationService) nudge(ctx context.Context, claim model.Claim, cfg model.RepositoryConfig) (bool, error) {
	now := s.now().UTC()
	applied, err := s.claims.RecordNudge(ctx, claim.ID, claim.NudgeCount, now, now.Add(cfg.GracePeriod), map[string]string{
		"nudge_number": strconv.Itoa(claim.NudgeCount + 1),
		"max_nudges":   strconv.Itoa(cfg.MaxNudges),
	})
	if err != nil {
		return false, fmt.Errorf("record nudge claim %d: %w", claim.ID, err)
	}
	if !applied {
		slog.Debug("nudge lost state guard, skipping", "claim", claim.ID)
		return false, nil
	}

	claim.NudgeCount++
	if err := s.notifier.SendNudge(ctx, claim); err != nil {
		slog.Error("nudge notification failed", "claim", claim.ID, "claimant", claim.Claimant, "error", err)
	}

	slog.Info("nudge sent",
		"issue", claim.IssueKey(),
		"claim", claim.ID,
		"claimant", claim.Claimant,
		"nudge_count", claim.NudgeCount,
		"max_nudges", cfg.MaxNudges,
	)
	return true, nil
}

// autoRelease transitions the claim to Released and fans out the best-effort
// side effects (unassign, claimant notice, maintainer notice). Side effects
// run only when this firing won the state guard, so a duplicate firing
// releases exactly once and notifies exactly once.
func (s *EscalationService) autoRelease(ctx context.Context, claim model.Claim) error {
	now := s.now().UTC()
	applied, err := s.claims.Release(ctx, claim.ID, model.ReleaseReasonMaxNudges, model.ActivityAutoReleased, now)
	if err != nil {
		return fmt.Errorf("release claim %d: %w", claim.ID, err)
	}
	if !applied {
		slog.Debug("release lost state guard, skipping", "claim", claim.ID)
		return nil
	}

	claim.Status = model.ClaimStatusReleased
	claim.ReleaseReason = model.ReleaseReasonMaxNudges

	if err := s.mutator.Unassign(ctx, claim.RepoFullName, claim.IssueNumber, claim.Claimant); err != nil {
		slog.Error("unassign failed", "issue", claim.IssueKey(), "claimant", claim.Claimant, "error", err)
	}
	if err := s.notifier.SendAutoRelease(ctx, claim, model.ReleaseReasonMaxNudges); err != nil {
		slog.Error("auto-release notification failed", "claim", claim.ID, "error", err)
	}
	if err := s.notifier.NotifyMaintainer(ctx, claim.RepoFullName, "auto_release", claim); err != nil {
		slog.Error("maintainer notification failed", "claim", claim.ID, "error", err)
	}

	slog.Info("claim auto-released",
		"issue", claim.IssueKey(),
		"claim", claim.ID,
		"claimant", claim.Claimant,
		"reason", model.ReleaseReasonMaxNudges,
	)
	return nil
}

// NudgeNow sends a manually triggered nudge immediately, using the same
// count-guarded transition as scheduled firings so the two cannot
// double-apply. Reports whether the nudge was applied.
func (s *EscalationService) NudgeNow(ctx context.Context, claimID int64) (bool, error) {
	claim, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return false, fmt.Errorf("load claim %d: %w", claimID, err)
	}
	if claim == nil || claim.Status != model.ClaimStatusActive {
		return false, nil
	}

	cfg, err := s.configs.GetOrDefault(ctx, claim.RepoFullName)
	if err != nil {
		return false, fmt.Errorf("load repo config %s: %w", claim.RepoFullName, err)
	}

	return s.nudge(ctx, *claim, cfg)
}

// ReleaseNow performs a manually triggered release. The status guard means a
// concurrently in-flight scheduled firing observes the terminal state and
// no-ops. Reports whether this call performed the release.
func (s *EscalationService) ReleaseNow(ctx context.Context, claimID int64, reason string) (bool, error) {
	if reason == "" {
		reason = model.ReleaseReasonManual
	}

	now := s.now().UTC()
	applied, err := s.claims.Release(ctx, claimID, reason, model.ActivityManualRelease, now)
	if err != nil {
		return false, fmt.Errorf("release claim %d: %w", claimID, err)
	}
	if !applied {
		return false, nil
	}

	claim, err := s.claims.Get(ctx, claimID)
	if err == nil && claim != nil {
		if err := s.mutator.Unassign(ctx, claim.RepoFullName, claim.IssueNumber, claim.Claimant); err != nil {
			slog.Error("unassign failed", "issue", claim.IssueKey(), "claimant", claim.Claimant, "error", err)
		}
		slog.Info("claim manually released", "issue", claim.IssueKey(), "claim", claimID, "reason", reason)
	}
	return true, nil
}

// Complete transitions an Active claim to Completed (externally triggered,
// e.g. the claimant's fix merged). Reports whether the transition applied.
func (s *EscalationService) Complete(ctx context.Context, claimID int64) (bool, error) {
	applied, err := s.claims.Complete(ctx, claimID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete claim %d: %w", claimID, err)
	}
	return applied, nil
}
