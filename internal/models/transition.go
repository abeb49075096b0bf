package models

import "time"

// Transition actions.
const (
	ActionForward  = "forward"
	ActionBackward = "backward"
)

// Actor identifies one side of a handoff: a user id, a display name and
// the role under which they acted. ID may be empty for recipients that are
// teams rather than individuals.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// TransitionRecord is one immutable entry in the append-only transition
// log. A record is written for every attempt, including attempts that
// match no rule or fail a guard.
type TransitionRecord struct {
	ID       int64  `json:"id"`
	BillID   string `json:"bill_id"`
	FromUser Actor  `json:"from_user"`
	ToUser   Actor  `json:"to_user"`
	Action   string `json:"action"`
	Remarks  string `json:"remarks"`

	// Duration is the elapsed time since the previous record for the same
	// bill, zero for the first record.
	Duration time.Duration `json:"duration_ms"`

	// State is the named workflow state in effect after this attempt. For
	// failed attempts it repeats the bill's unchanged state.
	State string `json:"state"`

	CreatedAt time.Time `json:"created_at"`
}
