// Package service records email engagement signals on nurture sequences.
package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"leadfunnel_backend/internal/nurture/domain"
	"leadfunnel_backend/platform/metrics"

	"github.com/google/uuid"
)

const (
	EventEmailOpened  = "email_opened"
	EventEmailClicked = "email_clicked"

	kindOpen  = "open"
	kindClick = "click"
)

// ErrSequenceNotFound is returned by SequenceStore for unknown ids.
var ErrSequenceNotFound = errors.New("sequence not found")

// Sequence is the tracking view of a nurture job.
type Sequence struct {
	ID     uuid.UUID
	LeadID uuid.UUID
	Status domain.Status
}

// SequenceStore reads and flags nurture jobs.
type SequenceStore interface {
	GetSequence(ctx context.Context, id uuid.UUID) (Sequence, error)
	MarkOpenedIf(ctx context.Context, id uuid.UUID, observed, next domain.Status) (bool, error)
	MarkClicked(ctx context.Context, id uuid.UUID) error
}

// Timeline appends lead events.
type Timeline interface {
	AppendEvent(ctx context.Context, leadID uuid.UUID, eventType string, metadata map[string]any) error
}

type Service struct {
	store    SequenceStore
	timeline Timeline
	fallback string
}

// New creates the tracking service. fallbackURL is where clicks without a
// usable destination land.
func New(store SequenceStore, timeline Timeline, fallbackURL string) *Service {
	return &Service{store: store, timeline: timeline, fallback: fallbackURL}
}

// RecordOpen upgrades a sent sequence to opened and logs the open. Unknown
// or malformed ids are ignored.
func (s *Service) RecordOpen(ctx context.Context, sid string) error {
	seq, ok, err := s.resolve(ctx, kindOpen, sid)
	if !ok || err != nil {
		return err
	}

	if update := domain.OnOpen(seq.Status); update.Apply {
		if _, err := s.store.MarkOpenedIf(ctx, seq.ID, seq.Status, update.Status); err != nil {
			metrics.RecordTracking(kindOpen, "error")
			return err
		}
	}

	if err := s.timeline.AppendEvent(ctx, seq.LeadID, EventEmailOpened, map[string]any{
		"sequence_id": seq.ID.String(),
	}); err != nil {
		metrics.RecordTracking(kindOpen, "error")
		return err
	}
	metrics.RecordTracking(kindOpen, "recorded")
	return nil
}

// RecordClick marks a sequence clicked and logs the destination.
func (s *Service) RecordClick(ctx context.Context, sid, destination string) error {
	seq, ok, err := s.resolve(ctx, kindClick, sid)
	if !ok || err != nil {
		return err
	}

	if err := s.store.MarkClicked(ctx, seq.ID); err != nil {
		metrics.RecordTracking(kindClick, "error")
		return err
	}

	if err := s.timeline.AppendEvent(ctx, seq.LeadID, EventEmailClicked, map[string]any{
		"sequence_id": seq.ID.String(),
		"url":         destination,
	}); err != nil {
		metrics.RecordTracking(kindClick, "error")
		return err
	}
	metrics.RecordTracking(kindClick, "recorded")
	return nil
}

// Destination returns raw when it is an absolute http(s) URL, otherwise the
// site root.
func (s *Service) Destination(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return s.fallback
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return s.fallback
	}
	return u.String()
}

func (s *Service) resolve(ctx context.Context, kind, sid string) (Sequence, bool, error) {
	id, err := uuid.Parse(strings.TrimSpace(sid))
	if err != nil {
		metrics.RecordTracking(kind, "ignored")
		return Sequence{}, false, nil
	}
	seq, err := s.store.GetSequence(ctx, id)
	if errors.Is(err, ErrSequenceNotFound) {
		metrics.RecordTracking(kind, "ignored")
		return Sequence{}, false, nil
	}
	if err != nil {
		metrics.RecordTracking(kind, "error")
		return Sequence{}, false, err
	}
	return seq, true, nil
}
