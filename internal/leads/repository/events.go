package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LeadEvent is an immutable timeline entry.
type LeadEvent struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	EventType string
	Metadata  map[string]any
	CreatedAt time.Time
}

type AppendEventParams struct {
	LeadID    uuid.UUID
	EventType string
	Metadata  map[string]any
}

func (r *Repository) AppendEvent(ctx context.Context, params AppendEventParams) (LeadEvent, error) {
	var metadataJSON []byte
	if params.Metadata != nil {
		encoded, err := json.Marshal(params.Metadata)
		if err != nil {
			return LeadEvent{}, err
		}
		metadataJSON = encoded
	}

	event := LeadEvent{
		ID:        uuid.New(),
		LeadID:    params.LeadID,
		EventType: params.EventType,
		Metadata:  params.Metadata,
	}

	// metadata is excluded from RETURNING: we already hold params.Metadata as a Go value.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_events (id, lead_id, event_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, event.ID, params.LeadID, params.EventType, metadataJSON).Scan(&event.CreatedAt)
	if err != nil {
		return LeadEvent{}, err
	}
	return event, nil
}

// ListEvents returns a page of a lead's timeline, newest first, with the total count.
func (r *Repository) ListEvents(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]LeadEvent, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lead_events WHERE lead_id = $1`, leadID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, event_type, metadata, created_at
		FROM lead_events
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, leadID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]LeadEvent, 0)
	for rows.Next() {
		var event LeadEvent
		var rawMetadata []byte
		if err := rows.Scan(&event.ID, &event.LeadID, &event.EventType, &rawMetadata, &event.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(rawMetadata) > 0 {
			_ = json.Unmarshal(rawMetadata, &event.Metadata)
		}
		items = append(items, event)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}
