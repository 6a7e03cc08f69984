package service

import (
	"context"
	"errors"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/leads/transport"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/sanitize"

	"github.com/google/uuid"
)

// ApplyAction runs an operator action: a guarded field update followed by
// the matching timeline event. A failed event append leaves the update in
// place and is only logged.
func (s *Service) ApplyAction(ctx context.Context, id uuid.UUID, name string, req transport.LeadActionRequest) (transport.ActionResponse, error) {
	action, ok := domain.ParseAction(name)
	if !ok {
		return transport.ActionResponse{}, apperr.NotFound("unknown action")
	}
	if action == domain.ActionMarkLost && !req.Confirm {
		return transport.ActionResponse{}, apperr.Validation("mark-lost requires confirm=true")
	}

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ActionResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.ActionResponse{}, err
	}

	transition, err := domain.Apply(action, domain.Status(lead.Status))
	if err != nil {
		var illegal *domain.IllegalTransitionError
		if errors.As(err, &illegal) {
			return transport.ActionResponse{}, apperr.Conflict(illegal.Error())
		}
		return transport.ActionResponse{}, err
	}

	if transition.StatusChanged() || transition.TouchContacted {
		lead, err = s.repo.UpdateStatusIf(ctx, repository.ConditionalStatusParams{
			ID:             id,
			From:           string(transition.From),
			To:             string(transition.To),
			TouchContacted: transition.TouchContacted,
			At:             s.now(),
		})
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrNotFound):
				return transport.ActionResponse{}, apperr.NotFound(msgLeadNotFound)
			case errors.Is(err, repository.ErrStatusConflict):
				return transport.ActionResponse{}, apperr.Conflict("lead status changed, reload and retry")
			}
			return transport.ActionResponse{}, err
		}
	}

	metadata := map[string]any{}
	if action == domain.ActionScheduleMeeting {
		metadata["notes"] = sanitize.Text(req.Notes)
	} else {
		metadata["from"] = string(transition.From)
		metadata["to"] = string(transition.To)
	}

	resp := transport.ActionResponse{Success: true, Lead: toLeadResponse(lead)}
	event, err := s.repo.AppendEvent(ctx, repository.AppendEventParams{
		LeadID:    id,
		EventType: transition.EventType,
		Metadata:  metadata,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("action event append failed", "leadId", id, "action", action, "error", err)
	} else {
		resp.Event = toEventResponse(event)
	}

	if transition.StatusChanged() {
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			From:      string(transition.From),
			To:        string(transition.To),
			Action:    string(action),
		})
	}

	return resp, nil
}
