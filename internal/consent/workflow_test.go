package consent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurobridge/matchcore/internal/audit"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

type workflowFixture struct {
	workflow    *Workflow
	matches     *store.MemoryMatchStore
	connections *store.MemoryConnectionStore
	audits      *store.MemoryAuditStore
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		matches:     store.NewMemoryMatchStore(),
		connections: store.NewMemoryConnectionStore(),
		audits:      store.NewMemoryAuditStore(),
	}
	f.workflow = NewWorkflow(f.matches, f.connections, audit.New(f.audits, nil), nil)
	return f
}

func (f *workflowFixture) seedMatch(t *testing.T, status types.MatchStatus) *types.MatchRecord {
	t.Helper()
	now := time.Now()
	record := &types.MatchRecord{
		ID:          uuid.New(),
		JobID:       uuid.New(),
		CandidateID: uuid.New(),
		CompanyID:   uuid.New(),
		Score:       76,
		Breakdown:   types.ScoreBreakdown{Skills: 67, Accommodations: 100, Preferences: 50, Location: 100},
		Explanation: "deterministic explanation",
		Status:      status,
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	require.NoError(t, f.matches.Create(context.Background(), record))
	return record
}

func TestReviewMatch_Approve(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchPending)
	reviewer := uuid.New()

	updated, err := f.workflow.ReviewMatch(context.Background(), record.ID, reviewer, DecisionApprove, "looks solid")
	require.NoError(t, err)
	assert.Equal(t, types.MatchApproved, updated.Status)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, reviewer, *updated.ReviewedBy)
	assert.NotNil(t, updated.ReviewedAt)
	assert.Equal(t, "looks solid", updated.ReviewNotes)
	assert.False(t, updated.CompanyCanView)

	entries, err := f.audits.Query(context.Background(), store.AuditFilter{EventType: types.EventMatchReviewed})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, reviewer.String(), entries[0].ActorID)
}

func TestReviewMatch_RejectsNonPending(t *testing.T) {
	f := newWorkflowFixture(t)
	for _, status := range []types.MatchStatus{types.MatchApproved, types.MatchRejected, types.MatchAccepted, types.MatchExpired} {
		record := f.seedMatch(t, status)
		_, err := f.workflow.ReviewMatch(context.Background(), record.ID, uuid.New(), DecisionApprove, "")
		var terr *StateTransitionError
		require.ErrorAs(t, err, &terr, "status %s", status)

		// No mutation on a rejected transition.
		stored, gerr := f.matches.Get(context.Background(), record.ID)
		require.NoError(t, gerr)
		assert.Equal(t, status, stored.Status)
		assert.Equal(t, int64(1), stored.Version)
	}
}

func TestReviewMatch_UnknownDecision(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchPending)
	_, err := f.workflow.ReviewMatch(context.Background(), record.ID, uuid.New(), Decision("accept"), "")
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCandidateRespond_AcceptCreatesConnection(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchApproved)

	updated, connection, err := f.workflow.CandidateRespond(context.Background(), record.ID, record.CandidateID, DecisionAccept, "", false)
	require.NoError(t, err)
	assert.Equal(t, types.MatchAccepted, updated.Status)
	assert.True(t, updated.CompanyCanView)
	require.NotNil(t, connection)
	assert.Equal(t, types.ConnectionJobMatch, connection.Type)
	assert.Equal(t, types.StageNewMatches, connection.PipelineStage)
	assert.Equal(t, types.ConnectionActive, connection.Status)
	assert.Equal(t, record.CandidateID, connection.CandidateID)
	assert.Equal(t, record.CompanyID, connection.CompanyID)
	assert.Equal(t, DefaultSharedData, connection.SharedData)
	require.NotNil(t, updated.ConnectionID)
	assert.Equal(t, connection.ID, *updated.ConnectionID)

	stored, err := f.connections.Get(context.Background(), connection.ID)
	require.NoError(t, err)
	assert.Equal(t, connection.ID, stored.ID)
}

func TestCandidateRespond_RejectWithPrivateReason(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchApproved)

	updated, connection, err := f.workflow.CandidateRespond(context.Background(), record.ID, record.CandidateID, DecisionReject, "uncomfortable with the interview format", true)
	require.NoError(t, err)
	assert.Nil(t, connection)
	assert.Equal(t, types.MatchRejected, updated.Status)
	assert.Equal(t, "uncomfortable with the interview format", updated.RejectionReason)
	assert.True(t, updated.RejectionReasonPrivate)

	// The company view never carries a private reason.
	view := updated.CompanyView()
	assert.Empty(t, view.RejectionReason)

	// Neither does the audit trail.
	entries, err := f.audits.Query(context.Background(), store.AuditFilter{EventType: types.EventCandidateResponded})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, false, entries[0].Details["reason_shared"])
	for _, v := range entries[0].Details {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "uncomfortable")
		}
	}
}

func TestCandidateRespond_SharedReasonVisibleToCompany(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchApproved)

	updated, _, err := f.workflow.CandidateRespond(context.Background(), record.ID, record.CandidateID, DecisionReject, "role requires on-site presence", false)
	require.NoError(t, err)
	assert.Equal(t, "role requires on-site presence", updated.CompanyView().RejectionReason)
}

func TestCandidateRespond_WrongCandidate(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchApproved)

	_, _, err := f.workflow.CandidateRespond(context.Background(), record.ID, uuid.New(), DecisionAccept, "", false)
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
}

func TestCandidateRespond_RequiresApproval(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchPending)

	_, _, err := f.workflow.CandidateRespond(context.Background(), record.ID, record.CandidateID, DecisionAccept, "", false)
	var terr *StateTransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestWorkflow_ConcurrentTransitionLosesCleanly(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchPending)

	// Simulate a racer that read the same version and committed first.
	stale, err := f.matches.Get(context.Background(), record.ID)
	require.NoError(t, err)
	stale.Status = types.MatchApproved
	require.NoError(t, f.matches.Update(context.Background(), stale, stale.Version))

	// A second reviewer working from the stale read cannot clobber it: the
	// reload sees APPROVED and the transition is refused.
	_, err = f.workflow.ReviewMatch(context.Background(), record.ID, uuid.New(), DecisionReject, "")
	var terr *StateTransitionError
	require.ErrorAs(t, err, &terr)

	stored, err := f.matches.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MatchApproved, stored.Status)
}

func TestSweepExpired(t *testing.T) {
	f := newWorkflowFixture(t)

	pending := f.seedMatch(t, types.MatchPending)
	approved := f.seedMatch(t, types.MatchApproved)
	fresh := f.seedMatch(t, types.MatchPending)
	accepted := f.seedMatch(t, types.MatchAccepted)

	past := time.Now().Add(-time.Hour)
	for _, record := range []*types.MatchRecord{pending, approved, accepted} {
		record.ExpiresAt = past
		require.NoError(t, f.matches.Update(context.Background(), record, record.Version))
	}

	closed, err := f.workflow.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	for _, id := range []uuid.UUID{pending.ID, approved.ID} {
		record, err := f.matches.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, types.MatchExpired, record.Status)
	}
	record, err := f.matches.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MatchPending, record.Status)

	// Terminal records are never swept even when past expiry.
	record, err = f.matches.Get(context.Background(), accepted.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MatchAccepted, record.Status)

	entries, err := f.audits.Query(context.Background(), store.AuditFilter{EventType: types.EventMatchExpired})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRevokeConsent(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchApproved)

	accepted, connection, err := f.workflow.CandidateRespond(context.Background(), record.ID, record.CandidateID, DecisionAccept, "", false)
	require.NoError(t, err)
	require.True(t, accepted.CompanyCanView)

	revoked, err := f.workflow.RevokeConsent(context.Background(), record.ID, record.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, types.MatchAccepted, revoked.Status)
	assert.False(t, revoked.CompanyCanView)
	assert.NotNil(t, revoked.RevokedAt)

	stored, err := f.connections.Get(context.Background(), connection.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionRevoked, stored.Status)
	assert.Equal(t, types.StageRevoked, stored.PipelineStage)
	assert.NotNil(t, stored.RevokedAt)

	// History is retained; the company view is dark.
	view := revoked.CompanyView()
	assert.Nil(t, view.Score)
	assert.Empty(t, view.Explanation)

	entries, err := f.audits.Query(context.Background(), store.AuditFilter{EventType: types.EventConsentRevoked})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// A second revocation reports the consent as already revoked.
	_, err = f.workflow.RevokeConsent(context.Background(), record.ID, record.CandidateID)
	var rerr *ConsentRevokedError
	assert.ErrorAs(t, err, &rerr)
}

func TestRevokeConsent_OnlyAcceptedMatches(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchApproved)

	_, err := f.workflow.RevokeConsent(context.Background(), record.ID, record.CandidateID)
	var terr *StateTransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestRevokeConsent_WrongCandidate(t *testing.T) {
	f := newWorkflowFixture(t)
	record := f.seedMatch(t, types.MatchAccepted)

	_, err := f.workflow.RevokeConsent(context.Background(), record.ID, uuid.New())
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
}
