// Package service implements nurture scheduling and dispatch.
package service

import (
	"context"
	"time"

	"leadfunnel_backend/internal/nurture/domain"
	"leadfunnel_backend/internal/nurture/repository"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

// Scheduler creates and cancels a lead's nurture series.
type Scheduler struct {
	store SequenceStore
	log   *logger.Logger
	now   func() time.Time
}

func NewScheduler(store SequenceStore, log *logger.Logger) *Scheduler {
	return &Scheduler{store: store, log: log, now: time.Now}
}

// ScheduleLead inserts the three follow-up jobs for a newly captured lead.
// It must run once per lead; there is no idempotency key.
func (s *Scheduler) ScheduleLead(ctx context.Context, leadID uuid.UUID) ([]repository.Sequence, error) {
	seqs, err := s.store.Schedule(ctx, repository.ScheduleParams{
		LeadID: leadID,
		Steps:  domain.Schedule(s.now().UTC()),
	})
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("nurture scheduled", "leadId", leadID, "jobs", len(seqs))
	return seqs, nil
}

// StopLead cancels pending jobs once a lead reaches a closing status.
func (s *Scheduler) StopLead(ctx context.Context, leadID uuid.UUID, leadStatus string) (int64, error) {
	if !domain.StopsNurture(leadStatus) {
		return 0, nil
	}
	n, err := s.store.CancelPendingForLead(ctx, leadID, "lead status "+leadStatus)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.WithContext(ctx).Info("nurture stopped", "leadId", leadID, "status", leadStatus, "cancelled", n)
	}
	return n, nil
}
