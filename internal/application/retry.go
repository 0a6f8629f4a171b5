package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// RetryPolicy is an explicit, bounded retry wrapper: attempt count, backoff
// schedule, and a dead-letter sink. It replaces any task-framework retry
// magic; operations that exhaust their attempts are persisted for manual
// inspection, never silently dropped.
type RetryPolicy struct {
	MaxRetries   uint64
	BaseInterval time.Duration
	sink         driven.JobStore
	clock        func() time.Time
}

// NewRetryPolicy creates a policy with the given bounds and dead-letter sink.
func NewRetryPolicy(maxRetries uint64, base time.Duration, sink driven.JobStore) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		BaseInterval: base,
		sink:         sink,
		clock:        time.Now,
	}
}

// Execute runs op under the policy. kind and payload describe the triggering
// event for the dead-letter record written when retries are exhausted. The
// returned error is the last attempt's error; a dead-letter write failure is
// logged but does not mask it.
func (p *RetryPolicy) Execute(ctx context.Context, kind, payload string, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseInterval
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	attempts := 0
	wrapped := func() error {
		attempts++
		return op(ctx)
	}

	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx))
	if err == nil {
		return nil
	}

	slog.Error("retries exhausted, dead-lettering", "kind", kind, "attempts", attempts, "error", err)
	dl := model.DeadLetter{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		LastError: err.Error(),
		Attempts:  attempts,
		CreatedAt: p.clock().UTC(),
	}
	if dlErr := p.sink.AddDeadLetter(ctx, dl); dlErr != nil {
		slog.Error("dead-letter write failed", "kind", kind, "error", dlErr)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", kind, attempts, err)
}
