package service

import (
	"context"
	"errors"
	"time"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/nurture/repository"

	"github.com/google/uuid"
)

// ErrLeadNotFound is returned by LeadReader implementations for unknown ids.
var ErrLeadNotFound = errors.New("lead not found")

// SequenceStore persists nurture jobs.
type SequenceStore interface {
	Schedule(ctx context.Context, params repository.ScheduleParams) ([]repository.Sequence, error)
	ClaimDue(ctx context.Context, params repository.ClaimParams) ([]repository.Sequence, error)
	RenewClaim(ctx context.Context, id uuid.UUID, claimedAt, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error
	CancelPendingForLead(ctx context.Context, leadID uuid.UUID, reason string) (int64, error)
}

// Lead is the slice of lead data a nurture email needs.
type Lead struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Company            string
	Budget             string
	ServiceInterest    string
	Status             string
	CommercialAccepted bool
}

// LeadReader resolves the owner of a job at send time.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
}

// Timeline appends lead events.
type Timeline interface {
	AppendEvent(ctx context.Context, leadID uuid.UUID, eventType string, metadata map[string]any) error
}

// Renderer produces subject and HTML for a template id.
type Renderer interface {
	Render(templateID string, to email.Recipient) (email.Rendered, error)
}

// Archiver keeps a copy of each delivered email.
type Archiver interface {
	Archive(ctx context.Context, leadID, sequenceID uuid.UUID, html string) error
}

// RunLock prevents overlapping dispatcher runs across processes.
type RunLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// Pinger reports data store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
