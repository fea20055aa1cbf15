package workflows

import "fmt"

// Certificate statuses as stored in students.certificate_status. The column
// defaults to "none"; NULL and the empty string mean the same thing.
const (
	StatusNone     = "none"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// StateMachine enforces certificate status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			StatusNone:     {StatusPending},
			StatusPending:  {StatusApproved, StatusRejected},
			StatusRejected: {StatusPending},
			StatusApproved: {StatusRejected}, // Revoking an approved certificate
		},
	}
}

// Normalize maps NULL-like stored values onto StatusNone.
func Normalize(status string) string {
	if status == "" {
		return StatusNone
	}
	return status
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[Normalize(from)]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns an error naming both statuses when from -> to is not allowed.
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return &TransitionError{From: Normalize(from), To: to}
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[Normalize(from)]
	if !exists {
		return []string{}
	}
	return allowed
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move certificate from %s to %s", e.From, e.To)
}
