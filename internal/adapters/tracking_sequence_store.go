package adapters

import (
	"context"
	"errors"

	"leadfunnel_backend/internal/nurture/domain"
	nurturerepo "leadfunnel_backend/internal/nurture/repository"
	trackingsvc "leadfunnel_backend/internal/tracking/service"

	"github.com/google/uuid"
)

// SequenceRepository is the subset of the nurture repository tracking needs.
type SequenceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (nurturerepo.Sequence, error)
	MarkOpenedIf(ctx context.Context, id uuid.UUID, observed, next domain.Status) (bool, error)
	MarkClicked(ctx context.Context, id uuid.UUID) error
}

// TrackingSequenceStore exposes nurture sequences to the tracking context.
type TrackingSequenceStore struct {
	repo SequenceRepository
}

// NewTrackingSequenceStore creates a new tracking sequence store adapter.
func NewTrackingSequenceStore(repo SequenceRepository) *TrackingSequenceStore {
	return &TrackingSequenceStore{repo: repo}
}

// GetSequence loads a sequence by id.
func (a *TrackingSequenceStore) GetSequence(ctx context.Context, id uuid.UUID) (trackingsvc.Sequence, error) {
	seq, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, nurturerepo.ErrNotFound) {
		return trackingsvc.Sequence{}, trackingsvc.ErrSequenceNotFound
	}
	if err != nil {
		return trackingsvc.Sequence{}, err
	}
	return trackingsvc.Sequence{ID: seq.ID, LeadID: seq.LeadID, Status: seq.Status}, nil
}

func (a *TrackingSequenceStore) MarkOpenedIf(ctx context.Context, id uuid.UUID, observed, next domain.Status) (bool, error) {
	return a.repo.MarkOpenedIf(ctx, id, observed, next)
}

func (a *TrackingSequenceStore) MarkClicked(ctx context.Context, id uuid.UUID) error {
	return a.repo.MarkClicked(ctx, id)
}

var _ trackingsvc.SequenceStore = (*TrackingSequenceStore)(nil)
