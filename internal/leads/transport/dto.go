package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateLeadRequest struct {
	Name               string         `json:"name" validate:"required,min=2,max=200"`
	Email              string         `json:"email" validate:"required,email,max=254"`
	Company            *string        `json:"company,omitempty" validate:"omitempty,max=200"`
	Phone              *string        `json:"phone,omitempty" validate:"omitempty,max=40"`
	Budget             *string        `json:"budget,omitempty" validate:"omitempty,budget"`
	Message            *string        `json:"message,omitempty" validate:"omitempty,max=5000"`
	ServiceInterest    *string        `json:"service_interest,omitempty" validate:"omitempty,max=100"`
	Source             string         `json:"source,omitempty" validate:"omitempty,leadsource"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	PrivacyAccepted    bool           `json:"privacy_accepted" validate:"eq=true"`
	CommercialAccepted bool           `json:"commercial_accepted"`
}

type ListLeadsQuery struct {
	Status         string `form:"status" validate:"omitempty,oneof=new contacted qualified proposal customer lost"`
	Classification string `form:"classification" validate:"omitempty,oneof=hot warm cold"`
	Source         string `form:"source" validate:"omitempty,max=50"`
	Search         string `form:"search" validate:"omitempty,max=200"`
	Sort           string `form:"sort" validate:"omitempty,oneof=created_at updated_at score name email classification status"`
	Order          string `form:"order" validate:"omitempty,oneof=asc desc"`
	Page           int    `form:"page" validate:"omitempty,min=1"`
	Limit          int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// UpdateLeadRequest is decoded strictly: unknown fields are rejected.
type UpdateLeadRequest struct {
	Status          *string        `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified proposal customer lost"`
	Classification  *string        `json:"classification,omitempty" validate:"omitempty,oneof=hot warm cold"`
	LastContactedAt *time.Time     `json:"last_contacted_at,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// IsEmpty reports whether no updatable field was supplied.
func (r UpdateLeadRequest) IsEmpty() bool {
	return r.Status == nil && r.Classification == nil && r.LastContactedAt == nil && r.Metadata == nil
}

type ListEventsQuery struct {
	Limit  int `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int `form:"offset" validate:"omitempty,min=0"`
}

type CreateEventRequest struct {
	EventType string         `json:"event_type" validate:"required,oneof=call meeting proposal note status_change"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type LeadActionRequest struct {
	Notes   string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Confirm bool   `json:"confirm,omitempty"`
}

// Response DTOs

type CreatedLead struct {
	ID             uuid.UUID `json:"id"`
	Score          int       `json:"score"`
	Classification string    `json:"classification"`
}

type CreateLeadResponse struct {
	Success bool        `json:"success"`
	Lead    CreatedLead `json:"lead"`
}

type LeadResponse struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	Email              string         `json:"email"`
	Company            *string        `json:"company"`
	Phone              *string        `json:"phone"`
	Budget             *string        `json:"budget"`
	Message            *string        `json:"message"`
	ServiceInterest    *string        `json:"service_interest"`
	Source             string         `json:"source"`
	Score              int            `json:"score"`
	Classification     string         `json:"classification"`
	Status             string         `json:"status"`
	PrivacyAccepted    bool           `json:"privacy_accepted"`
	CommercialAccepted bool           `json:"commercial_accepted"`
	Metadata           map[string]any `json:"metadata"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	LastContactedAt    *time.Time     `json:"last_contacted_at"`
}

type LeadEventResponse struct {
	ID        uuid.UUID      `json:"id"`
	LeadID    uuid.UUID      `json:"lead_id"`
	EventType string         `json:"event_type"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type LeadListResponse struct {
	Success    bool           `json:"success"`
	Data       []LeadResponse `json:"data"`
	Pagination PageInfo       `json:"pagination"`
}

type LeadDetailResponse struct {
	Success bool                `json:"success"`
	Lead    LeadResponse        `json:"lead"`
	Events  []LeadEventResponse `json:"events"`
}

type LeadEnvelope struct {
	Success bool         `json:"success"`
	Lead    LeadResponse `json:"lead"`
}

type OffsetInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

type EventListResponse struct {
	Success    bool                `json:"success"`
	Events     []LeadEventResponse `json:"events"`
	Pagination OffsetInfo          `json:"pagination"`
}

type EventEnvelope struct {
	Success bool              `json:"success"`
	Event   LeadEventResponse `json:"event"`
}

type ActionResponse struct {
	Success bool              `json:"success"`
	Lead    LeadResponse      `json:"lead"`
	Event   LeadEventResponse `json:"event"`
}
