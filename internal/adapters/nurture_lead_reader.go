package adapters

import (
	"context"
	"errors"

	leadsrepo "leadfunnel_backend/internal/leads/repository"
	nurturesvc "leadfunnel_backend/internal/nurture/service"

	"github.com/google/uuid"
)

// NurtureLeadReader gives the nurture dispatcher a read-only view of leads.
type NurtureLeadReader struct {
	repo leadsrepo.LeadReader
}

// NewNurtureLeadReader creates a new nurture lead reader adapter.
func NewNurtureLeadReader(repo leadsrepo.LeadReader) *NurtureLeadReader {
	return &NurtureLeadReader{repo: repo}
}

// GetLead loads the lead and maps it to the nurture view.
func (a *NurtureLeadReader) GetLead(ctx context.Context, id uuid.UUID) (nurturesvc.Lead, error) {
	lead, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, leadsrepo.ErrNotFound) {
		return nurturesvc.Lead{}, nurturesvc.ErrLeadNotFound
	}
	if err != nil {
		return nurturesvc.Lead{}, err
	}

	return nurturesvc.Lead{
		ID:                 lead.ID,
		Name:               lead.Name,
		Email:              lead.Email,
		Company:            deref(lead.Company),
		Budget:             deref(lead.Budget),
		ServiceInterest:    deref(lead.ServiceInterest),
		Status:             lead.Status,
		CommercialAccepted: lead.CommercialAccepted,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ nurturesvc.LeadReader = (*NurtureLeadReader)(nil)
