package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// ErrLockUnavailable is returned when a per-issue lock cannot be acquired
// within the bounded retry budget. Transient: callers requeue or dead-letter
// the triggering event rather than dropping it.
var ErrLockUnavailable = errors.New("issue lock unavailable")

// Lock defaults. The TTL bounds staleness if a holder crashes without
// releasing; work exceeding the TTL risks duplicate processing, so critical
// sections stay short and downstream effects are idempotent.
const (
	DefaultLockTTL          = 5 * time.Minute
	defaultLockRetries      = 10
	defaultLockBaseInterval = 100 * time.Millisecond
)

// LockManager provides per-issue mutual exclusion over a shared key-value
// store using a set-if-absent-with-expiry primitive.
type LockManager struct {
	store   driven.LockStore
	owner   string
	ttl     time.Duration
	base    time.Duration
	retries uint64
}

// NewLockManager creates a LockManager identifying itself as owner in lock
// token values.
func NewLockManager(store driven.LockStore, owner string) *LockManager {
	return &LockManager{
		store:   store,
		owner:   owner,
		ttl:     DefaultLockTTL,
		base:    defaultLockBaseInterval,
		retries: defaultLockRetries,
	}
}

// WithRetryPolicy overrides the acquisition backoff schedule. Intended for
// construction-time tuning and tests.
func (m *LockManager) WithRetryPolicy(base time.Duration, retries uint64) *LockManager {
	m.base = base
	m.retries = retries
	return m
}

// WithTTL overrides the lock TTL.
func (m *LockManager) WithTTL(ttl time.Duration) *LockManager {
	m.ttl = ttl
	return m
}

// Acquire takes the lock for issueKey, retrying with exponential backoff
// (base x 2^attempt) up to the bounded attempt count. Returns the token to
// pass to Release, or ErrLockUnavailable once the budget is exhausted.
func (m *LockManager) Acquire(ctx context.Context, issueKey string) (model.LockToken, error) {
	token := model.LockToken{
		Owner:      m.owner,
		AcquiredAt: time.Now().UTC(),
		Nonce:      uuid.NewString(),
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.base
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = m.ttl
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		if m.store.SetIfAbsent(lockKey(issueKey), token.Value(), m.ttl) {
			return nil
		}
		attempt++
		slog.Debug("lock contended", "issue", issueKey, "attempt", attempt)
		return fmt.Errorf("lock held: %s", issueKey)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, m.retries), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return model.LockToken{}, ctx.Err()
		}
		slog.Warn("lock acquisition exhausted", "issue", issueKey, "attempts", attempt)
		return model.LockToken{}, fmt.Errorf("%w: %s", ErrLockUnavailable, issueKey)
	}

	return token, nil
}

// Release frees the lock iff token still owns it. A late release after TTL
// expiry (when another holder may have acquired the key) is a no-op, which
// the atomic check-then-delete in the store guarantees.
func (m *LockManager) Release(issueKey string, token model.LockToken) {
	if !m.store.DeleteIfValue(lockKey(issueKey), token.Value()) {
		slog.Warn("lock already released or expired", "issue", issueKey)
	}
}

func lockKey(issueKey string) string {
	return "issue_lock:" + issueKey
}
