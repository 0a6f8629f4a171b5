package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Dispatcher drains the inbound comment-event queue and feeds each event to
// the coordinator under the bounded retry policy: transient failures (lock
// budget exhausted, persistence errors) are retried, then dead-lettered;
// business outcomes like a claim conflict pass through untouched.
type Dispatcher struct {
	queue       driven.EventQueue
	coordinator *ClaimCoordinator
	retry       *RetryPolicy
	interval    time.Duration
	batch       int
}

// NewDispatcher creates a Dispatcher. interval is how often the queue is
// polled for pending events.
func NewDispatcher(queue driven.EventQueue, coordinator *ClaimCoordinator, retry *RetryPolicy, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		queue:       queue,
		coordinator: coordinator,
		retry:       retry,
		interval:    interval,
		batch:       50,
	}
}

// Start runs the drain loop until the context is canceled. An immediate drain
// runs first so restarts pick up backlogged events without waiting an
// interval.
func (d *Dispatcher) Start(ctx context.Context) {
	if err := d.DrainPending(ctx); err != nil {
		slog.Error("initial event drain failed", "error", err)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("event dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.DrainPending(ctx); err != nil {
				slog.Error("event drain failed", "error", err)
			}
		}
	}
}

// DrainPending processes every pending queued event once, oldest first.
// Events that exhaust their retries are marked failed and dead-lettered.
func (d *Dispatcher) DrainPending(ctx context.Context) error {
	pending, err := d.queue.NextPending(ctx, d.batch)
	if err != nil {
		return fmt.Errorf("list pending events: %w", err)
	}

	for _, qe := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcome, err := d.Dispatch(ctx, qe.Event)
		if err != nil {
			if markErr := d.queue.MarkFailed(ctx, qe.ID); markErr != nil {
				slog.Error("mark event failed errored", "event", qe.ID, "error", markErr)
			}
			continue
		}

		if err := d.queue.MarkProcessed(ctx, qe.ID); err != nil {
			slog.Error("mark event processed errored", "event", qe.ID, "error", err)
		}
		slog.Debug("comment event processed",
			"event", qe.ID, "comment", qe.Event.CommentID, "outcome", outcome.Kind)
	}
	return nil
}

// Dispatch processes one comment event under the retry policy. The returned
// error means the event was dead-lettered after exhausting retries.
func (d *Dispatcher) Dispatch(ctx context.Context, event model.CommentEvent) (CommentOutcome, error) {
	var outcome CommentOutcome

	payload := fmt.Sprintf(`{"comment_id":%d,"issue":%q,"commenter":%q}`,
		event.CommentID, event.IssueKey(), event.Commenter.Username)

	err := d.retry.Execute(ctx, "comment_event", payload, func(ctx context.Context) error {
		var handleErr error
		outcome, handleErr = d.coordinator.HandleComment(ctx, event)
		return handleErr
	})
	if err != nil {
		return CommentOutcome{}, err
	}
	return outcome, nil
}
