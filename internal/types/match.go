package types

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus mirrors the match_status enum in PostgreSQL.
type MatchStatus string

// Match statuses. ACCEPTED, REJECTED and EXPIRED are terminal.
const (
	MatchPending  MatchStatus = "PENDING"
	MatchApproved MatchStatus = "APPROVED"
	MatchRejected MatchStatus = "REJECTED"
	MatchAccepted MatchStatus = "ACCEPTED"
	MatchExpired  MatchStatus = "EXPIRED"
)

// MatchRecord is the unit of the consent workflow: a proposed pairing of a
// candidate and a job posting. It is created by the matching engine, mutated
// only through workflow transitions, and immutable once terminal except for
// the expiry sweep.
type MatchRecord struct {
	ID          uuid.UUID      `json:"id"`
	JobID       uuid.UUID      `json:"job_id"`
	CandidateID uuid.UUID      `json:"candidate_id"`
	CompanyID   uuid.UUID      `json:"company_id"`
	Score       int            `json:"score"`
	Breakdown   ScoreBreakdown `json:"breakdown"`

	// Explanation starts as the deterministic fallback text and is replaced
	// once the background inference explanation lands.
	Explanation         string `json:"explanation"`
	ExplanationFallback bool   `json:"explanation_fallback"`

	Status                 MatchStatus `json:"status"`
	ReviewedBy             *uuid.UUID  `json:"reviewed_by,omitempty"`
	ReviewedAt             *time.Time  `json:"reviewed_at,omitempty"`
	ReviewNotes            string      `json:"review_notes,omitempty"`
	RejectionReason        string      `json:"rejection_reason,omitempty"`
	RejectionReasonPrivate bool        `json:"rejection_reason_private,omitempty"`

	ExpiresAt      time.Time  `json:"expires_at"`
	CompanyCanView bool       `json:"company_can_view"`
	ConnectionID   *uuid.UUID `json:"connection_id,omitempty"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version supports optimistic concurrency on workflow transitions.
	Version int64 `json:"version"`
}

// IsTerminal reports whether the record can no longer transition
// (excluding the expiry sweep, which only applies to non-terminal records).
func (m *MatchRecord) IsTerminal() bool {
	switch m.Status {
	case MatchAccepted, MatchRejected, MatchExpired:
		return true
	}
	return false
}

// CompanyMatchView is the company-facing projection of a MatchRecord.
// Score details and explanations are withheld until the candidate has
// accepted, and private rejection reasons are never included.
type CompanyMatchView struct {
	ID           uuid.UUID       `json:"id"`
	JobID        uuid.UUID       `json:"job_id"`
	Status       MatchStatus     `json:"status"`
	Score        *int            `json:"score,omitempty"`
	Breakdown    *ScoreBreakdown `json:"breakdown,omitempty"`
	Explanation  string          `json:"explanation,omitempty"`
	CandidateID  *uuid.UUID      `json:"candidate_id,omitempty"`
	ConnectionID *uuid.UUID      `json:"connection_id,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at"`

	// RejectionReason is present only when the candidate chose to share it.
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// CompanyView returns the redacted company-facing projection of the record.
func (m *MatchRecord) CompanyView() CompanyMatchView {
	view := CompanyMatchView{
		ID:        m.ID,
		JobID:     m.JobID,
		Status:    m.Status,
		ExpiresAt: m.ExpiresAt,
	}
	if m.Status == MatchRejected && !m.RejectionReasonPrivate {
		view.RejectionReason = m.RejectionReason
	}
	if !m.CompanyCanView {
		return view
	}
	score := m.Score
	breakdown := m.Breakdown
	candidateID := m.CandidateID
	view.Score = &score
	view.Breakdown = &breakdown
	view.Explanation = m.Explanation
	view.CandidateID = &candidateID
	view.ConnectionID = m.ConnectionID
	return view
}
