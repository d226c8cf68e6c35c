package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/gateway"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

// ProposalTTL is how long a proposed match waits for review and response
// before the expiry sweep closes it.
const ProposalTTL = 7 * 24 * time.Hour

// explainerCaller is the rate-limit identity used for background
// explanation calls, so engine traffic never starves interactive callers.
const explainerCaller = "matching-engine"

// Explainer produces a human-readable explanation for a scored pairing.
// *gateway.Gateway satisfies it.
type Explainer interface {
	ExplainMatch(ctx context.Context, caller string, candidate *types.CandidateProfile, job *types.JobPosting, score int, breakdown types.ScoreBreakdown) (*gateway.MatchExplanation, error)
}

// Engine proposes matches. A proposal is persisted immediately with a
// deterministic explanation; the model explanation is attached by a
// background task once it arrives.
type Engine struct {
	matches   store.MatchStore
	explainer Explainer
	audit     *audit.Log
	log       *zap.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

// NewEngine creates a matching engine. explainer may be nil, in which case
// records keep their deterministic explanation.
func NewEngine(matches store.MatchStore, explainer Explainer, auditLog *audit.Log, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		matches:   matches,
		explainer: explainer,
		audit:     auditLog,
		log:       log,
		now:       time.Now,
	}
}

// ProposeMatch scores the pairing and persists a PENDING match record.
// Proposing the same (candidate, job) pair again while a non-terminal record
// exists returns that record instead of creating a duplicate.
func (e *Engine) ProposeMatch(ctx context.Context, candidate *types.CandidateProfile, job *types.JobPosting) (*types.MatchRecord, error) {
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.matches.FindActiveByPair(ctx, candidate.ID, job.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing match: %w", err)
	}

	breakdown := Score(candidate, job)
	score := breakdown.Overall()
	now := e.now()

	record := &types.MatchRecord{
		ID:                  uuid.New(),
		JobID:               job.ID,
		CandidateID:         candidate.ID,
		CompanyID:           job.CompanyID,
		Score:               score,
		Breakdown:           breakdown,
		Explanation:         gateway.FallbackExplanation(job, score, breakdown).Summary,
		ExplanationFallback: true,
		Status:              types.MatchPending,
		ExpiresAt:           now.Add(ProposalTTL),
		CompanyCanView:      false,
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}

	if err := e.matches.Create(ctx, record); err != nil {
		// A concurrent proposal for the same pair won the insert.
		if errors.Is(err, store.ErrDuplicateActivePair) {
			if winner, ferr := e.matches.FindActiveByPair(ctx, candidate.ID, job.ID); ferr == nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("failed to create match record: %w", err)
	}

	if _, aerr := e.audit.Append(ctx, types.EventMatchProposed, candidate.ID.String(), map[string]any{
		"match_id":     record.ID.String(),
		"job_id":       job.ID.String(),
		"candidate_id": candidate.ID.String(),
		"score":        score,
	}); aerr != nil {
		e.log.Error("failed to audit match proposal", zap.Error(aerr))
	}

	if e.explainer != nil {
		e.wg.Add(1)
		go e.attachExplanation(record.ID, candidate, job, score, breakdown)
	}
	return record, nil
}

// attachExplanation asks the inference backend for an explanation and, if
// one arrives, replaces the record's deterministic text. The update only
// applies while the record still carries the deterministic explanation, so
// retried or duplicated tasks cannot overwrite a model explanation, and a
// version check keeps it from clobbering concurrent workflow transitions.
func (e *Engine) attachExplanation(matchID uuid.UUID, candidate *types.CandidateProfile, job *types.JobPosting, score int, breakdown types.ScoreBreakdown) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	explanation, err := e.explainer.ExplainMatch(ctx, explainerCaller, candidate, job, score, breakdown)
	if err != nil {
		e.log.Warn("explanation attach skipped", zap.String("match_id", matchID.String()), zap.Error(err))
		return
	}
	if explanation.Fallback {
		return
	}

	for attempt := 0; attempt < 3; attempt++ {
		record, err := e.matches.Get(ctx, matchID)
		if err != nil {
			e.log.Warn("explanation attach failed to load record", zap.String("match_id", matchID.String()), zap.Error(err))
			return
		}
		if !record.ExplanationFallback {
			return
		}
		record.Explanation = explanation.Summary + "\n\n" + explanation.Disclaimer
		record.ExplanationFallback = false
		record.UpdatedAt = e.now()

		err = e.matches.Update(ctx, record, record.Version)
		if err == nil {
			return
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			e.log.Warn("explanation attach failed to update record", zap.String("match_id", matchID.String()), zap.Error(err))
			return
		}
	}
}

// Wait blocks until all in-flight explanation tasks finish. Called on
// shutdown and by tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}
