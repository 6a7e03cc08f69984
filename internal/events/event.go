// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadfunnel_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published after a lead has been persisted. Subscribers run
// the post-capture side effects (confirmation email, hot lead alert, nurture
// scheduling).
type LeadCreated struct {
	BaseEvent
	LeadID             uuid.UUID `json:"leadId"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Company            string    `json:"company,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Budget             string    `json:"budget,omitempty"`
	ServiceInterest    string    `json:"serviceInterest,omitempty"`
	Message            string    `json:"message,omitempty"`
	Source             string    `json:"source"`
	Score              int       `json:"score"`
	Classification     string    `json:"classification"`
	CommercialAccepted bool      `json:"commercialAccepted"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// IsHot reports whether the lead needs immediate human follow-up.
func (e LeadCreated) IsHot() bool { return e.Classification == "hot" }

// LeadStatusChanged is published when an operator action moves a lead.
type LeadStatusChanged struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Action string    `json:"action"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }
