package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

// Decision is a party's answer to a pending question in the workflow.
type Decision string

// Decisions. Reviewers approve or reject; candidates accept or reject.
const (
	DecisionApprove Decision = "approve"
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
)

// DefaultSharedData is the candidate-field allow-list granted to the company
// when a match is accepted.
var DefaultSharedData = []string{"skills", "experience", "accommodations_needed", "assessment_score"}

// Workflow applies consent transitions to match records. Every transition is
// an optimistic compare-and-swap on the record version: of two concurrent
// writers, exactly one wins and the other gets a StateTransitionError.
type Workflow struct {
	matches     store.MatchStore
	connections store.ConnectionStore
	audit       *audit.Log
	log         *zap.Logger
	now         func() time.Time
}

// NewWorkflow creates a consent workflow over the given stores.
func NewWorkflow(matches store.MatchStore, connections store.ConnectionStore, auditLog *audit.Log, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{
		matches:     matches,
		connections: connections,
		audit:       auditLog,
		log:         log,
		now:         time.Now,
	}
}

// ReviewMatch records a reviewer's decision on a PENDING match.
func (w *Workflow) ReviewMatch(ctx context.Context, matchID, reviewerID uuid.UUID, decision Decision, notes string) (*types.MatchRecord, error) {
	var target types.MatchStatus
	switch decision {
	case DecisionApprove:
		target = types.MatchApproved
	case DecisionReject:
		target = types.MatchRejected
	default:
		return nil, &types.ValidationError{Field: "decision", Message: fmt.Sprintf("unknown review decision %q", decision)}
	}

	record, err := w.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record.Status != types.MatchPending || !IsTransitionAllowed(record.Status, target) {
		return nil, &StateTransitionError{MatchID: matchID, From: record.Status, To: target}
	}

	now := w.now()
	record.Status = target
	record.ReviewedBy = &reviewerID
	record.ReviewedAt = &now
	record.ReviewNotes = notes
	record.UpdatedAt = now

	if err := w.update(ctx, record, types.MatchPending, target); err != nil {
		return nil, err
	}

	w.append(ctx, types.EventMatchReviewed, reviewerID.String(), map[string]any{
		"match_id": matchID.String(),
		"decision": string(decision),
	})
	return record, nil
}

// CandidateRespond records the candidate's answer to an APPROVED match.
// Accepting grants company visibility and creates the connection; rejecting
// may carry a reason, optionally kept private from the company.
func (w *Workflow) CandidateRespond(ctx context.Context, matchID, candidateID uuid.UUID, decision Decision, reason string, reasonPrivate bool) (*types.MatchRecord, *types.ConnectionRecord, error) {
	var target types.MatchStatus
	switch decision {
	case DecisionAccept:
		target = types.MatchAccepted
	case DecisionReject:
		target = types.MatchRejected
	default:
		return nil, nil, &types.ValidationError{Field: "decision", Message: fmt.Sprintf("unknown candidate decision %q", decision)}
	}

	record, err := w.matches.Get(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if record.CandidateID != candidateID {
		return nil, nil, &PermissionError{ActorID: candidateID, Action: "respond to this match"}
	}
	if record.Status != types.MatchApproved || !IsTransitionAllowed(record.Status, target) {
		return nil, nil, &StateTransitionError{MatchID: matchID, From: record.Status, To: target}
	}

	now := w.now()
	record.Status = target
	record.UpdatedAt = now

	var connection *types.ConnectionRecord
	if target == types.MatchAccepted {
		connection = &types.ConnectionRecord{
			ID:             uuid.New(),
			Type:           types.ConnectionJobMatch,
			MatchID:        record.ID,
			CandidateID:    record.CandidateID,
			CompanyID:      record.CompanyID,
			SharedData:     append([]string(nil), DefaultSharedData...),
			ConsentGivenAt: now,
			PipelineStage:  types.StageNewMatches,
			Status:         types.ConnectionActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		record.CompanyCanView = true
		record.ConnectionID = &connection.ID
	} else {
		record.RejectionReason = reason
		record.RejectionReasonPrivate = reasonPrivate
	}

	if err := w.update(ctx, record, types.MatchApproved, target); err != nil {
		return nil, nil, err
	}

	if connection != nil {
		if err := w.connections.Create(ctx, connection); err != nil {
			return nil, nil, fmt.Errorf("failed to create connection: %w", err)
		}
	}

	details := map[string]any{
		"match_id": matchID.String(),
		"decision": string(decision),
	}
	if target == types.MatchRejected {
		// The reason text stays out of the audit trail; only whether one
		// was shared with the company is recorded.
		details["reason_shared"] = reason != "" && !reasonPrivate
	}
	w.append(ctx, types.EventCandidateResponded, candidateID.String(), details)
	return record, connection, nil
}

// SweepExpired moves every non-terminal match past its expiry to EXPIRED and
// returns how many records it closed. Records that transition concurrently
// are skipped, not failed.
func (w *Workflow) SweepExpired(ctx context.Context) (int, error) {
	now := w.now()
	expired, err := w.matches.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired matches: %w", err)
	}

	closed := 0
	for _, record := range expired {
		if !IsTransitionAllowed(record.Status, types.MatchExpired) {
			continue
		}
		record.Status = types.MatchExpired
		record.UpdatedAt = now
		if err := w.matches.Update(ctx, record, record.Version); err != nil {
			if errors.Is(err, store.ErrVersionConflict) || errors.Is(err, store.ErrNotFound) {
				continue
			}
			return closed, fmt.Errorf("failed to expire match %s: %w", record.ID, err)
		}
		closed++
		w.append(ctx, types.EventMatchExpired, "system", map[string]any{
			"match_id": record.ID.String(),
		})
	}
	return closed, nil
}

// RevokeConsent withdraws an accepted match's data sharing. The match keeps
// its ACCEPTED status and full history; company visibility is cut off and
// the connection is marked revoked.
func (w *Workflow) RevokeConsent(ctx context.Context, matchID, candidateID uuid.UUID) (*types.MatchRecord, error) {
	record, err := w.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if record.CandidateID != candidateID {
		return nil, &PermissionError{ActorID: candidateID, Action: "revoke consent for this match"}
	}
	if record.Status != types.MatchAccepted {
		return nil, &StateTransitionError{MatchID: matchID, From: record.Status, To: record.Status, Reason: "only an accepted match can be revoked"}
	}
	if record.RevokedAt != nil {
		if record.ConnectionID != nil {
			return nil, &ConsentRevokedError{ConnectionID: *record.ConnectionID}
		}
		return nil, &StateTransitionError{MatchID: matchID, From: record.Status, To: record.Status, Reason: "consent already revoked"}
	}

	now := w.now()
	record.CompanyCanView = false
	record.RevokedAt = &now
	record.UpdatedAt = now

	if err := w.update(ctx, record, types.MatchAccepted, types.MatchAccepted); err != nil {
		return nil, err
	}

	if record.ConnectionID != nil {
		connection, err := w.connections.Get(ctx, *record.ConnectionID)
		if err != nil {
			w.log.Error("revoked match has no loadable connection", zap.String("match_id", matchID.String()), zap.Error(err))
		} else {
			connection.Status = types.ConnectionRevoked
			connection.PipelineStage = types.StageRevoked
			connection.RevokedAt = &now
			connection.UpdatedAt = now
			if err := w.connections.Update(ctx, connection); err != nil {
				return nil, fmt.Errorf("failed to revoke connection: %w", err)
			}
		}
	}

	w.append(ctx, types.EventConsentRevoked, candidateID.String(), map[string]any{
		"match_id": matchID.String(),
	})
	return record, nil
}

// update applies the CAS write, converting a lost race into the workflow's
// own error type.
func (w *Workflow) update(ctx context.Context, record *types.MatchRecord, from, to types.MatchStatus) error {
	err := w.matches.Update(ctx, record, record.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		return &StateTransitionError{MatchID: record.ID, From: from, To: to, Reason: "record changed concurrently"}
	}
	return err
}

func (w *Workflow) append(ctx context.Context, event types.EventType, actorID string, details map[string]any) {
	if _, err := w.audit.Append(ctx, event, actorID, details); err != nil {
		w.log.Error("failed to append audit entry", zap.String("event", string(event)), zap.Error(err))
	}
}
