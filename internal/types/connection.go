package types

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionType distinguishes what kind of relationship a connection records.
type ConnectionType string

// Connection types.
const (
	ConnectionJobMatch   ConnectionType = "job_match"
	ConnectionConsulting ConnectionType = "consulting"
	ConnectionTherapy    ConnectionType = "therapy"
)

// ConnectionStatus tracks whether the underlying consent still stands.
type ConnectionStatus string

// Connection statuses.
const (
	ConnectionActive  ConnectionStatus = "active"
	ConnectionRevoked ConnectionStatus = "revoked"
)

// PipelineStage mirrors the hiring pipeline for job-match connections.
type PipelineStage string

// Pipeline stages. StageHired, StageRejected, StageWithdrawn and
// StageRevoked are terminal.
const (
	StageNewMatches   PipelineStage = "new_matches"
	StageUnderReview  PipelineStage = "under_review"
	StageInterviewing PipelineStage = "interviewing"
	StageOffered      PipelineStage = "offered"
	StageHired        PipelineStage = "hired"
	StageRejected     PipelineStage = "rejected"
	StageWithdrawn    PipelineStage = "withdrawn"
	StageRevoked      PipelineStage = "revoked"
)

// ConnectionRecord is created only as a side effect of a MatchRecord reaching
// ACCEPTED. SharedData is the explicit allow-list of candidate fields the
// company may see for the duration of the connection.
type ConnectionRecord struct {
	ID             uuid.UUID        `json:"id"`
	Type           ConnectionType   `json:"type"`
	MatchID        uuid.UUID        `json:"match_id"`
	CandidateID    uuid.UUID        `json:"candidate_id"`
	CompanyID      uuid.UUID        `json:"company_id"`
	SharedData     []string         `json:"shared_data"`
	ConsentGivenAt time.Time        `json:"consent_given_at"`
	PipelineStage  PipelineStage    `json:"pipeline_stage"`
	Status         ConnectionStatus `json:"status"`
	RevokedAt      *time.Time       `json:"revoked_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
