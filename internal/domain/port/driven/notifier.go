package driven

import (
	"context"

	"github.com/Auankj/decode/internal/domain/model"
)

// Notifier defines the driven port for outbound notifications. Calls are
// best-effort: failures are logged by callers and never roll back a state
// transition that has already committed.
type Notifier interface {
	// SendNudge reminds the claimant that the claim looks inactive.
	SendNudge(ctx context.Context, claim model.Claim) error

	// SendAutoRelease informs the claimant their claim was released.
	SendAutoRelease(ctx context.Context, claim model.Claim, reason string) error

	// NotifyMaintainer surfaces an escalation event on the repository.
	NotifyMaintainer(ctx context.Context, repoFullName string, event string, claim model.Claim) error
}

// IssueMutator defines the driven port for changing issue assignment on the
// remote system. Best-effort; failure must not block the caller.
type IssueMutator interface {
	Unassign(ctx context.Context, repoFullName string, issueNumber int, username string) error
}
