package repository

import (
	"context"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	List(ctx context.Context, params ListParams) ([]Lead, int, error)
}

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error)
	UpdateStatusIf(ctx context.Context, params ConditionalStatusParams) (Lead, error)
}

// EventStore appends and reads the immutable lead timeline.
type EventStore interface {
	AppendEvent(ctx context.Context, params AppendEventParams) (LeadEvent, error)
	ListEvents(ctx context.Context, leadID uuid.UUID, limit, offset int) ([]LeadEvent, int, error)
}

// LeadRepository is the full persistence contract of the leads context.
type LeadRepository interface {
	LeadReader
	LeadWriter
	EventStore
}

var _ LeadRepository = (*Repository)(nil)
