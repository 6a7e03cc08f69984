package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/internal/leads/domain"
	"leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/leads/scoring"
	"leadfunnel_backend/internal/leads/transport"
	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/metrics"
	"leadfunnel_backend/platform/phone"
	"leadfunnel_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize    = 20
	defaultEventsLimit = 50
	detailEventsLimit  = 20

	msgLeadNotFound = "lead not found"
)

// Spawner runs work detached from the request.
type Spawner interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

type Service struct {
	repo     repository.LeadRepository
	eventBus events.Bus
	spawner  Spawner
	log      *logger.Logger
	now      func() time.Time
}

func New(repo repository.LeadRepository, eventBus events.Bus, spawner Spawner, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		spawner:  spawner,
		log:      log,
		now:      time.Now,
	}
}

// Create scores and persists a submission. Timeline logging and the
// LeadCreated side effects never fail the capture.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.CreatedLead, error) {
	company := sanitize.OptionalText(req.Company)
	message := sanitize.OptionalText(req.Message)
	serviceInterest := sanitize.OptionalText(req.ServiceInterest)
	budget := sanitize.OptionalText(req.Budget)
	var phoneNumber *string
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		normalized := phone.NormalizeE164(*req.Phone)
		phoneNumber = &normalized
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = domain.SourceWeb
	}

	result := scoring.Score(scoring.Input{
		Budget:          deref(budget),
		ServiceInterest: deref(serviceInterest),
		Phone:           deref(phoneNumber),
		Company:         deref(company),
		// Length is measured on what the visitor typed, before sanitizing.
		Message: deref(req.Message),
		Source:  source,
	})

	metadata := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["scoring_breakdown"] = result.Breakdown
	metadata["scoring_version"] = scoring.Version

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		Name:               sanitize.Text(req.Name),
		Email:              sanitize.Email(req.Email),
		Company:            company,
		Phone:              phoneNumber,
		Budget:             budget,
		Message:            message,
		ServiceInterest:    serviceInterest,
		Source:             source,
		Score:              result.Score,
		Classification:     string(result.Classification),
		Status:             string(domain.StatusNew),
		PrivacyAccepted:    req.PrivacyAccepted,
		CommercialAccepted: req.CommercialAccepted,
		Metadata:           metadata,
	})
	if err != nil {
		return transport.CreatedLead{}, err
	}

	metrics.RecordLeadCreated(lead.Classification)
	s.logFormSubmit(ctx, lead)

	s.eventBus.Publish(ctx, events.LeadCreated{
		BaseEvent:          events.NewBaseEvent(),
		LeadID:             lead.ID,
		Name:               lead.Name,
		Email:              lead.Email,
		Company:            deref(lead.Company),
		Phone:              deref(lead.Phone),
		Budget:             deref(lead.Budget),
		ServiceInterest:    deref(lead.ServiceInterest),
		Message:            deref(lead.Message),
		Source:             lead.Source,
		Score:              lead.Score,
		Classification:     lead.Classification,
		CommercialAccepted: lead.CommercialAccepted,
	})

	return transport.CreatedLead{
		ID:             lead.ID,
		Score:          lead.Score,
		Classification: lead.Classification,
	}, nil
}

func (s *Service) logFormSubmit(ctx context.Context, lead repository.Lead) {
	err := s.spawner.Submit(ctx, "lead.form_submit", func(ctx context.Context) error {
		_, err := s.repo.AppendEvent(ctx, repository.AppendEventParams{
			LeadID:    lead.ID,
			EventType: domain.EventFormSubmit,
			Metadata: map[string]any{
				"score":          lead.Score,
				"classification": lead.Classification,
				"source":         lead.Source,
			},
		})
		return err
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("form_submit event not scheduled", "leadId", lead.ID, "error", err)
	}
}

func (s *Service) List(ctx context.Context, q transport.ListLeadsQuery) (transport.LeadListResponse, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = defaultPageSize
	}

	params := repository.ListParams{
		Search:    q.Search,
		SortBy:    q.Sort,
		SortOrder: q.Order,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if q.Status != "" {
		params.Status = &q.Status
	}
	if q.Classification != "" {
		params.Classification = &q.Classification
	}
	if q.Source != "" {
		params.Source = &q.Source
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	data := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		data = append(data, toLeadResponse(lead))
	}

	return transport.LeadListResponse{
		Success: true,
		Data:    data,
		Pagination: transport.PageInfo{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// GetDetail loads a lead and its most recent timeline entries concurrently.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (transport.LeadDetailResponse, error) {
	var (
		lead      repository.Lead
		timeline  []repository.LeadEvent
		group, gc = errgroup.WithContext(ctx)
	)

	group.Go(func() error {
		var err error
		lead, err = s.repo.GetByID(gc, id)
		return err
	})
	group.Go(func() error {
		var err error
		timeline, _, err = s.repo.ListEvents(gc, id, detailEventsLimit, 0)
		return err
	})

	if err := group.Wait(); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadDetailResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadDetailResponse{}, err
	}

	return transport.LeadDetailResponse{
		Success: true,
		Lead:    toLeadResponse(lead),
		Events:  toEventResponses(timeline),
	}, nil
}

// Update applies an operator patch and records which fields changed.
// The patch does not enforce transition rules; actions do.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	if req.IsEmpty() {
		return transport.LeadResponse{}, apperr.Validation("no fields to update")
	}

	lead, err := s.repo.Update(ctx, id, repository.UpdateLeadParams{
		Status:          req.Status,
		Classification:  req.Classification,
		LastContactedAt: req.LastContactedAt,
		Metadata:        req.Metadata,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadResponse{}, err
	}

	changed, updates := changedFields(req)
	if _, err := s.repo.AppendEvent(ctx, repository.AppendEventParams{
		LeadID:    id,
		EventType: domain.EventLeadUpdated,
		Metadata: map[string]any{
			"changed_fields": changed,
			"updates":        updates,
		},
	}); err != nil {
		s.log.WithContext(ctx).Error("lead_updated event failed", "leadId", id, "error", err)
	}

	if req.Status != nil {
		s.eventBus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    id,
			To:        lead.Status,
			Action:    "update",
		})
	}

	return toLeadResponse(lead), nil
}

func changedFields(req transport.UpdateLeadRequest) ([]string, map[string]any) {
	changed := make([]string, 0, 4)
	updates := make(map[string]any, 4)
	if req.Status != nil {
		changed = append(changed, "status")
		updates["status"] = *req.Status
	}
	if req.Classification != nil {
		changed = append(changed, "classification")
		updates["classification"] = *req.Classification
	}
	if req.LastContactedAt != nil {
		changed = append(changed, "last_contacted_at")
		updates["last_contacted_at"] = req.LastContactedAt.UTC().Format(time.RFC3339)
	}
	if req.Metadata != nil {
		changed = append(changed, "metadata")
		updates["metadata"] = req.Metadata
	}
	return changed, updates
}

func (s *Service) ListEvents(ctx context.Context, id uuid.UUID, q transport.ListEventsQuery) (transport.EventListResponse, error) {
	limit := q.Limit
	if limit < 1 {
		limit = defaultEventsLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EventListResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.EventListResponse{}, err
	}

	items, total, err := s.repo.ListEvents(ctx, id, limit, offset)
	if err != nil {
		return transport.EventListResponse{}, err
	}

	return transport.EventListResponse{
		Success: true,
		Events:  toEventResponses(items),
		Pagination: transport.OffsetInfo{
			Limit:   limit,
			Offset:  offset,
			Total:   total,
			HasMore: offset+len(items) < total,
		},
	}, nil
}

func (s *Service) AddEvent(ctx context.Context, id uuid.UUID, req transport.CreateEventRequest) (transport.LeadEventResponse, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadEventResponse{}, apperr.NotFound(msgLeadNotFound)
		}
		return transport.LeadEventResponse{}, err
	}

	event, err := s.repo.AppendEvent(ctx, repository.AppendEventParams{
		LeadID:    id,
		EventType: req.EventType,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return transport.LeadEventResponse{}, err
	}
	return toEventResponse(event), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
