// Package domain holds the nurture sequence rules shared by the scheduler,
// the dispatcher and the tracking endpoints.
package domain

import "time"

// Status is the lifecycle state of one scheduled email.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusOpened    Status = "opened"
	StatusClicked   Status = "clicked"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Step is one entry of the nurture plan.
type Step struct {
	Number     int
	TemplateID string
	Delay      time.Duration
}

// Plan is the fixed follow-up series. Step 1 is the confirmation email sent
// at capture time and is not scheduled here.
var Plan = []Step{
	{Number: 2, TemplateID: "case_study", Delay: 24 * time.Hour},
	{Number: 3, TemplateID: "roi_proposal", Delay: 72 * time.Hour},
	{Number: 4, TemplateID: "cta_meeting", Delay: 168 * time.Hour},
}

// ScheduledStep is a plan step pinned to a send time.
type ScheduledStep struct {
	Step
	ScheduledAt time.Time
}

// Schedule pins every plan step relative to now.
func Schedule(now time.Time) []ScheduledStep {
	out := make([]ScheduledStep, 0, len(Plan))
	for _, step := range Plan {
		out = append(out, ScheduledStep{Step: step, ScheduledAt: now.Add(step.Delay)})
	}
	return out
}

// Eligible reports whether a lead may receive nurture mail.
func Eligible(classification string, commercialAccepted bool) bool {
	return commercialAccepted && classification != "hot"
}

// StopsNurture reports whether a lead status ends the series.
func StopsNurture(leadStatus string) bool {
	return leadStatus == "lost" || leadStatus == "customer"
}

// OpenUpdate is the mutation an open signal causes for a given current status.
// Apply is false when the sequence is already at or above opened.
type OpenUpdate struct {
	Apply  bool
	Status Status
}

// OnOpen decides how an open signal changes a sequence. sent upgrades to
// opened; opened and clicked never move; anything else only gains the flag.
func OnOpen(current Status) OpenUpdate {
	switch current {
	case StatusSent:
		return OpenUpdate{Apply: true, Status: StatusOpened}
	case StatusOpened, StatusClicked:
		return OpenUpdate{}
	default:
		return OpenUpdate{Apply: true, Status: current}
	}
}
