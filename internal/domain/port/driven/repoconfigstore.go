package driven

import (
	"context"

	"github.com/Auankj/decode/internal/domain/model"
)

// RepoConfigStore defines the driven port for per-repository escalation
// policy. The core only reads policy; writing it is an external concern.
type RepoConfigStore interface {
	// GetOrDefault returns the repository's stored policy, or the default
	// policy when no row exists. A missing row is not an error.
	GetOrDefault(ctx context.Context, repoFullName string) (model.RepositoryConfig, error)
}
