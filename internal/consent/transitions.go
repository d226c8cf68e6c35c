// Package consent runs the match consent workflow.
//
// Valid status graph:
//
//	PENDING ──► APPROVED ──► ACCEPTED
//	    │           │
//	    │           ├──► REJECTED
//	    ├──► REJECTED
//	    └──► EXPIRED ◄──┘
//
// ACCEPTED, REJECTED and EXPIRED are terminal. A reviewer moves PENDING to
// APPROVED or REJECTED; the candidate moves APPROVED to ACCEPTED or REJECTED;
// the expiry sweep moves either non-terminal state to EXPIRED. Revocation of
// an ACCEPTED match is not a status transition: the status stays ACCEPTED and
// the record keeps its history, but company visibility and the connection are
// withdrawn.
package consent

import "github.com/neurobridge/matchcore/internal/types"

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[types.MatchStatus][]types.MatchStatus{
	types.MatchPending:  {types.MatchApproved, types.MatchRejected, types.MatchExpired},
	types.MatchApproved: {types.MatchAccepted, types.MatchRejected, types.MatchExpired},
	// ACCEPTED, REJECTED and EXPIRED are terminal — no outgoing transitions
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to types.MatchStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// stageTransitions lists every allowed pipeline-stage move for an active
// connection. Any working stage can end in rejected or withdrawn.
var stageTransitions = map[types.PipelineStage][]types.PipelineStage{
	types.StageNewMatches:   {types.StageUnderReview, types.StageRejected, types.StageWithdrawn},
	types.StageUnderReview:  {types.StageInterviewing, types.StageRejected, types.StageWithdrawn},
	types.StageInterviewing: {types.StageOffered, types.StageRejected, types.StageWithdrawn},
	types.StageOffered:      {types.StageHired, types.StageRejected, types.StageWithdrawn},
	// hired, rejected, withdrawn and revoked are terminal
}

// IsStageTransitionAllowed returns true when moving the connection from → to
// is permitted by the pipeline graph.
func IsStageTransitionAllowed(from, to types.PipelineStage) bool {
	allowed, ok := stageTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
