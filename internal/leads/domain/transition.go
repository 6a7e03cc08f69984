package domain

import "fmt"

// Action is an operator command that may move a lead through the pipeline.
type Action string

const (
	ActionMarkContacted   Action = "mark-contacted"
	ActionScheduleMeeting Action = "schedule-meeting"
	ActionSendProposal    Action = "send-proposal"
	ActionMarkLost        Action = "mark-lost"
)

// Transition describes the effect of an action on a lead.
type Transition struct {
	From Status
	To   Status
	// EventType is appended to the timeline with the transition.
	EventType string
	// TouchContacted sets last_contacted_at to now.
	TouchContacted bool
}

// StatusChanged reports whether the transition writes a new status.
func (t Transition) StatusChanged() bool {
	return t.From != t.To
}

// IllegalTransitionError is returned when an action does not apply to the
// current status.
type IllegalTransitionError struct {
	Action Action
	From   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("action %s is not allowed from status %s", e.Action, e.From)
}

var rank = map[Status]int{
	StatusNew:       0,
	StatusContacted: 1,
	StatusQualified: 2,
	StatusProposal:  3,
	StatusCustomer:  4,
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionMarkContacted, ActionScheduleMeeting, ActionSendProposal, ActionMarkLost:
		return a, true
	}
	return "", false
}

// Apply computes the transition for action from the current status. Forward
// moves only. Customer and lost leads still take meeting notes, which never
// change the status.
func Apply(action Action, from Status) (Transition, error) {
	if action == ActionScheduleMeeting {
		return Transition{From: from, To: from, EventType: EventMeeting}, nil
	}
	if IsTerminal(from) {
		return Transition{}, &IllegalTransitionError{Action: action, From: from}
	}

	switch action {
	case ActionMarkContacted:
		if rank[from] > rank[StatusContacted] {
			return Transition{}, &IllegalTransitionError{Action: action, From: from}
		}
		return Transition{From: from, To: StatusContacted, EventType: EventStatusChange, TouchContacted: true}, nil
	case ActionSendProposal:
		if rank[from] > rank[StatusProposal] {
			return Transition{}, &IllegalTransitionError{Action: action, From: from}
		}
		return Transition{From: from, To: StatusProposal, EventType: EventProposal}, nil
	case ActionMarkLost:
		return Transition{From: from, To: StatusLost, EventType: EventStatusChange}, nil
	default:
		return Transition{}, fmt.Errorf("unknown action %q", action)
	}
}
