package service

import (
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/leads/transport"
)

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	metadata := lead.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return transport.LeadResponse{
		ID:                 lead.ID,
		Name:               lead.Name,
		Email:              lead.Email,
		Company:            lead.Company,
		Phone:              lead.Phone,
		Budget:             lead.Budget,
		Message:            lead.Message,
		ServiceInterest:    lead.ServiceInterest,
		Source:             lead.Source,
		Score:              lead.Score,
		Classification:     lead.Classification,
		Status:             lead.Status,
		PrivacyAccepted:    lead.PrivacyAccepted,
		CommercialAccepted: lead.CommercialAccepted,
		Metadata:           metadata,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
		LastContactedAt:    lead.LastContactedAt,
	}
}

func toEventResponse(event repository.LeadEvent) transport.LeadEventResponse {
	return transport.LeadEventResponse{
		ID:        event.ID,
		LeadID:    event.LeadID,
		EventType: event.EventType,
		Metadata:  event.Metadata,
		CreatedAt: event.CreatedAt,
	}
}

func toEventResponses(items []repository.LeadEvent) []transport.LeadEventResponse {
	out := make([]transport.LeadEventResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toEventResponse(item))
	}
	return out
}
