package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Auankj/decode/internal/domain/model"
	"github.com/Auankj/decode/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventQueue = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the EventQueue port interface.
// Events are stored as JSON payloads and drained in insertion order.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Enqueue appends a comment event to the queue.
func (r *EventRepo) Enqueue(ctx context.Context, event model.CommentEvent) error {
	const query = `
		INSERT INTO comment_events (payload, status, created_at)
		VALUES (?, 'pending', ?)
	`

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal comment event %d: %w", event.CommentID, err)
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("enqueue comment event %d: %w", event.CommentID, err)
	}
	return nil
}

// NextPending returns up to limit pending events, oldest first.
func (r *EventRepo) NextPending(ctx context.Context, limit int) ([]model.QueuedEvent, error) {
	const query = `
		SELECT id, payload
		FROM comment_events
		WHERE status = 'pending'
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var events []model.QueuedEvent
	for rows.Next() {
		var qe model.QueuedEvent
		var payload string

		if err := rows.Scan(&qe.ID, &payload); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &qe.Event); err != nil {
			return nil, fmt.Errorf("unmarshal event %d: %w", qe.ID, err)
		}
		events = append(events, qe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending events: %w", err)
	}
	return events, nil
}

// MarkProcessed marks an event as handled.
func (r *EventRepo) MarkProcessed(ctx context.Context, eventID int64) error {
	return r.setEventStatus(ctx, eventID, "processed")
}

// MarkFailed marks an event as dead after exhausted retries.
func (r *EventRepo) MarkFailed(ctx context.Context, eventID int64) error {
	return r.setEventStatus(ctx, eventID, "failed")
}

func (r *EventRepo) setEventStatus(ctx context.Context, eventID int64, status string) error {
	const query = `UPDATE comment_events SET status = ? WHERE id = ? AND status = 'pending'`

	if _, err := r.db.Writer.ExecContext(ctx, query, status, eventID); err != nil {
		return fmt.Errorf("mark event %d %s: %w", eventID, status, err)
	}
	return nil
}
