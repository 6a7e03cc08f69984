// Package domain provides core business rules for the leads bounded context.
package domain

// Status is a lead's position in the sales pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusProposal  Status = "proposal"
	StatusCustomer  Status = "customer"
	StatusLost      Status = "lost"
)

// Statuses lists every status in pipeline order.
var Statuses = []Status{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusCustomer, StatusLost}

// Classification is the coarse quality tier derived from a lead score.
type Classification string

const (
	ClassificationHot  Classification = "hot"
	ClassificationWarm Classification = "warm"
	ClassificationCold Classification = "cold"
)

const (
	hotThreshold  = 80
	warmThreshold = 40
)

// Classify maps a score to its tier.
func Classify(score int) Classification {
	switch {
	case score >= hotThreshold:
		return ClassificationHot
	case score >= warmThreshold:
		return ClassificationWarm
	default:
		return ClassificationCold
	}
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	for _, status := range Statuses {
		if string(status) == s {
			return true
		}
	}
	return false
}

// ValidClassification reports whether c is a known tier.
func ValidClassification(c string) bool {
	switch Classification(c) {
	case ClassificationHot, ClassificationWarm, ClassificationCold:
		return true
	}
	return false
}

// IsTerminal returns true for statuses where outreach has ended.
func IsTerminal(s Status) bool {
	return s == StatusCustomer || s == StatusLost
}

// Lead event types written to the timeline.
const (
	EventFormSubmit      = "form_submit"
	EventEmailSent       = "email_sent"
	EventEmailOpened     = "email_opened"
	EventEmailClicked    = "email_clicked"
	EventHotLeadNotified = "hot_lead_notified"
	EventStatusChange    = "status_change"
	EventNote            = "note"
	EventMeeting         = "meeting"
	EventProposal        = "proposal"
	EventCall            = "call"
	EventLeadUpdated     = "lead_updated"
)

// ManualEventTypes are the event types an operator may append directly.
var ManualEventTypes = []string{EventCall, EventMeeting, EventProposal, EventNote, EventStatusChange}

// Lead sources with special handling.
const (
	SourceWeb    = "web"
	SourceAIChat = "ai_chat"
)
