package consent

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/neurobridge/matchcore/internal/types"
)

// StateTransitionError indicates a workflow transition the state machine
// does not allow, including a transition lost to a concurrent writer.
type StateTransitionError struct {
	MatchID uuid.UUID
	From    types.MatchStatus
	To      types.MatchStatus
	Reason  string
}

func (e *StateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("match %s cannot move from %s to %s: %s", e.MatchID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("match %s cannot move from %s to %s", e.MatchID, e.From, e.To)
}

// PermissionError indicates the actor is not the party the operation
// belongs to.
type PermissionError struct {
	ActorID uuid.UUID
	Action  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor %s may not %s", e.ActorID, e.Action)
}

// ConsentRevokedError indicates an operation on a connection whose
// underlying consent has been revoked.
type ConsentRevokedError struct {
	ConnectionID uuid.UUID
}

func (e *ConsentRevokedError) Error() string {
	return fmt.Sprintf("consent for connection %s has been revoked", e.ConnectionID)
}
