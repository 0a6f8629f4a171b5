package driven

import (
	"context"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
)

// ProgressProbe defines the driven port for checking whether a claimant has
// produced externally visible work (linked pull requests, commits) since the
// claim's last recorded activity.
type ProgressProbe interface {
	CheckProgress(ctx context.Context, claim model.Claim, since time.Time) (model.ProgressReport, error)
}
