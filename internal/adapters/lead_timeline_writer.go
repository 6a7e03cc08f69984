package adapters

import (
	"context"

	leadsrepo "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/notification"
	nurturesvc "leadfunnel_backend/internal/nurture/service"
	trackingsvc "leadfunnel_backend/internal/tracking/service"

	"github.com/google/uuid"
)

// LeadTimelineWriter adapts the leads EventStore for events raised outside
// the leads context.
type LeadTimelineWriter struct {
	store leadsrepo.EventStore
}

// NewLeadTimelineWriter creates a new lead timeline writer adapter.
func NewLeadTimelineWriter(store leadsrepo.EventStore) *LeadTimelineWriter {
	return &LeadTimelineWriter{store: store}
}

// AppendEvent writes a lead timeline event.
func (a *LeadTimelineWriter) AppendEvent(ctx context.Context, leadID uuid.UUID, eventType string, metadata map[string]any) error {
	_, err := a.store.AppendEvent(ctx, leadsrepo.AppendEventParams{
		LeadID:    leadID,
		EventType: eventType,
		Metadata:  metadata,
	})
	return err
}

// Compile-time checks.
var (
	_ notification.LeadTimelineWriter = (*LeadTimelineWriter)(nil)
	_ nurturesvc.Timeline             = (*LeadTimelineWriter)(nil)
	_ trackingsvc.Timeline            = (*LeadTimelineWriter)(nil)
)
