package moderation

import "errors"

// Status is the moderation lifecycle state shared by listings and reviews.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrInvalidTransition is returned when a requested status change is not
// legal from the current state.
var ErrInvalidTransition = errors.New("invalid moderation transition")

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Visible reports whether an entity in state s is publicly visible.
func (s Status) Visible() bool {
	return s == StatusApproved
}

// Approve moves a pending entity to approved. Approving an entity that is
// already approved or has been rejected is not a legal transition.
func Approve(current Status) (Status, error) {
	if current != StatusPending {
		return current, ErrInvalidTransition
	}
	return StatusApproved, nil
}

// Reject moves a pending or approved entity to rejected. Rejected is
// terminal for admin actions; only an owner edit leaves it.
func Reject(current Status) (Status, error) {
	if current != StatusPending && current != StatusApproved {
		return current, ErrInvalidTransition
	}
	return StatusRejected, nil
}

// Resubmit is the edit-triggered reset back to pending. It is legal from
// every state: an owner may always resubmit by editing, including after a
// rejection.
func Resubmit(Status) Status {
	return StatusPending
}

// Apply performs the admin transition to target. Only approved and
// rejected are reachable this way; pending is owner-edit territory.
func Apply(current, target Status) (Status, error) {
	switch target {
	case StatusApproved:
		return Approve(current)
	case StatusRejected:
		return Reject(current)
	default:
		return current, ErrInvalidTransition
	}
}
