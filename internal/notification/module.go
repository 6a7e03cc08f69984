// Package notification provides event handlers for sending notifications
// in response to domain events.
// This module subscribes to events and inverts the dependency: domain modules
// no longer need to know about email providers or templates.
package notification

import (
	"context"

	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/events"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	eventHotLeadNotified = "hot_lead_notified"
	channelEmail         = "email"
)

// LeadTimelineWriter persists lead timeline events.
type LeadTimelineWriter interface {
	AppendEvent(ctx context.Context, leadID uuid.UUID, eventType string, metadata map[string]any) error
}

// Renderer builds the emails this module sends.
type Renderer interface {
	Render(templateID string, to email.Recipient) (email.Rendered, error)
	RenderHotLeadAlert(alert email.HotLeadAlert) (email.Rendered, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender   email.Sender
	renderer Renderer
	timeline LeadTimelineWriter
	cfg      config.NotificationConfig
	log      *logger.Logger
}

// New creates the notification module.
func New(sender email.Sender, renderer Renderer, timeline LeadTimelineWriter, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return &Module{
		sender:   sender,
		renderer: renderer,
		timeline: timeline,
		cfg:      cfg,
		log:      log,
	}
}

// RegisterHandlers subscribes to the events this module reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadCreated:
		return m.handleLeadCreated(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleLeadCreated(ctx context.Context, e events.LeadCreated) error {
	m.sendConfirmation(ctx, e)
	if e.IsHot() {
		m.notifyHotLead(ctx, e)
	}
	return nil
}

// sendConfirmation delivers the step 1 email every lead gets on capture.
func (m *Module) sendConfirmation(ctx context.Context, e events.LeadCreated) {
	log := m.log.WithContext(ctx)
	if !email.Available(m.sender) {
		log.Info("email disabled, confirmation not sent", "leadId", e.LeadID)
		return
	}

	rendered, err := m.renderer.Render(email.TemplateWelcome, email.Recipient{
		Name:            e.Name,
		Email:           e.Email,
		Company:         e.Company,
		Budget:          e.Budget,
		ServiceInterest: e.ServiceInterest,
	})
	if err != nil {
		log.Error("confirmation email render failed", "leadId", e.LeadID, "error", err)
		return
	}

	if _, err := m.sender.Send(ctx, email.Message{To: e.Email, Subject: rendered.Subject, HTML: rendered.HTML}); err != nil {
		log.Error("confirmation email failed", "leadId", e.LeadID, "error", err)
		return
	}
	log.Info("confirmation email sent", "leadId", e.LeadID)
}

// notifyHotLead alerts the sales inbox and records the attempt on the timeline.
func (m *Module) notifyHotLead(ctx context.Context, e events.LeadCreated) {
	log := m.log.WithContext(ctx)

	to := m.cfg.GetTeamNotifyEmail()
	switch {
	case to == "" || !email.Available(m.sender):
		log.Info("hot lead notification skipped, no transport", "leadId", e.LeadID, "score", e.Score)
	default:
		rendered, err := m.renderer.RenderHotLeadAlert(email.HotLeadAlert{
			Name:            e.Name,
			Email:           e.Email,
			Company:         e.Company,
			Phone:           e.Phone,
			Budget:          e.Budget,
			ServiceInterest: e.ServiceInterest,
			Message:         e.Message,
			Score:           e.Score,
		})
		if err != nil {
			log.Error("hot lead alert render failed", "leadId", e.LeadID, "error", err)
			break
		}
		if _, err := m.sender.Send(ctx, email.Message{To: to, Subject: rendered.Subject, HTML: rendered.HTML}); err != nil {
			log.Error("hot lead alert failed", "leadId", e.LeadID, "error", err)
			break
		}
		log.Info("hot lead alert sent", "leadId", e.LeadID, "score", e.Score)
	}

	if err := m.timeline.AppendEvent(ctx, e.LeadID, eventHotLeadNotified, map[string]any{
		"score":   e.Score,
		"channel": channelEmail,
	}); err != nil {
		log.Error("hot_lead_notified event failed", "leadId", e.LeadID, "error", err)
	}
}
