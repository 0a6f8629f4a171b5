package driven

import (
	"context"

	"github.com/Auankj/decode/internal/domain/model"
)

// EventQueue defines the driven port for the inbound comment-event queue.
// Ingestion processes enqueue events; workers drain them in insertion order.
type EventQueue interface {
	// Enqueue appends a comment event to the queue.
	Enqueue(ctx context.Context, event model.CommentEvent) error

	// NextPending returns up to limit pending events, oldest first.
	NextPending(ctx context.Context, limit int) ([]model.QueuedEvent, error)

	// MarkProcessed marks an event as handled.
	MarkProcessed(ctx context.Context, eventID int64) error

	// MarkFailed marks an event as dead after exhausted retries.
	MarkFailed(ctx context.Context, eventID int64) error
}
