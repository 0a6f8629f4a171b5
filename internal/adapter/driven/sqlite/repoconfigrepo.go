package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoConfigStore = (*RepoConfigRepo)(nil)

// RepoConfigRepo is the SQLite implementation of the RepoConfigStore port.
type RepoConfigRepo struct {
	db *DB
}

// NewRepoConfigRepo creates a new RepoConfigRepo backed by the given DB.
func NewRepoConfigRepo(db *DB) *RepoConfigRepo {
	return &RepoConfigRepo{db: db}
}

// GetOrDefault returns the repository's stored policy, or the default policy
// when no row exists.
func (r *RepoConfigRepo) GetOrDefault(ctx context.Context, repoFullName string) (model.RepositoryConfig, error) {
	const query = `
		SELECT grace_period_seconds, max_nudges, claim_threshold
		FROM repo_configs
		WHERE repo_full_name = ?
	`

	var graceSeconds int64
	cfg := model.RepositoryConfig{RepoFullName: repoFullName}

	err := r.db.Reader.QueryRowContext(ctx, query, repoFullName).
		Scan(&graceSeconds, &cfg.MaxNudges, &cfg.ClaimThreshold)
	if err == sql.ErrNoRows {
		return model.DefaultRepositoryConfig(repoFullName), nil
	}
	if err != nil {
		return model.RepositoryConfig{}, fmt.Errorf("get repo config %s: %w", repoFullName, err)
	}

	cfg.GracePeriod = time.Duration(graceSeconds) * time.Second
	return cfg, nil
}

// Upsert stores a repository's policy row. Policy administration is an
// external surface; this write path exists for provisioning and tests.
func (r *RepoConfigRepo) Upsert(ctx context.Context, cfg model.RepositoryConfig) error {
	const query = `
		INSERT INTO repo_configs (repo_full_name, grace_period_seconds, max_nudges, claim_threshold)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (repo_full_name) DO UPDATE SET
			grace_period_seconds = excluded.grace_period_seconds,
			max_nudges = excluded.max_nudges,
			claim_threshold = excluded.claim_threshold
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		cfg.RepoFullName, int64(cfg.GracePeriod/time.Second), cfg.MaxNudges, cfg.ClaimThreshold)
	if err != nil {
		return fmt.Errorf("upsert repo config %s: %w", cfg.RepoFullName, err)
	}
	return nil
}
