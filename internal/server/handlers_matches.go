package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurobridge/matchcore/internal/consent"
	"github.com/neurobridge/matchcore/internal/server/middleware"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

type proposeRequest struct {
	Candidate types.CandidateProfile `json:"candidate"`
	Job       types.JobPosting       `json:"job"`
}

// handleProposeMatch scores a pairing and opens the consent workflow.
func (s *Server) handleProposeMatch(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	record, err := s.engine.ProposeMatch(r.Context(), &req.Candidate, &req.Job)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, record)
}

// handleGetMatch returns the match as the authenticated actor is entitled
// to see it. Companies get the redacted projection, and reads that expose
// candidate data are audited.
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "id", Message: "invalid match id"})
		return
	}
	actorID, err := middleware.GetActorID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	role, err := middleware.GetRole(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	record, err := s.matches.Get(r.Context(), matchID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	switch role {
	case middleware.RoleReviewer:
		s.jsonResponse(w, http.StatusOK, record)
	case middleware.RoleCandidate:
		if record.CandidateID != actorID {
			s.errorResponse(w, store.ErrNotFound)
			return
		}
		s.jsonResponse(w, http.StatusOK, record)
	case middleware.RoleCompany:
		if record.CompanyID != actorID {
			s.errorResponse(w, store.ErrNotFound)
			return
		}
		view := record.CompanyView()
		if view.CandidateID != nil {
			s.appendAudit(r, types.EventProfileAccessed, actorID.String(), map[string]any{
				"match_id":     record.ID.String(),
				"candidate_id": record.CandidateID.String(),
			})
		}
		s.jsonResponse(w, http.StatusOK, view)
	default:
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

type reviewRequest struct {
	Decision consent.Decision `json:"decision"`
	Notes    string           `json:"notes,omitempty"`
}

// handleReviewMatch records the reviewer's decision on a pending match.
func (s *Server) handleReviewMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "id", Message: "invalid match id"})
		return
	}
	reviewerID, err := middleware.GetActorID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	record, err := s.workflow.ReviewMatch(r.Context(), matchID, reviewerID, req.Decision, req.Notes)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

type respondRequest struct {
	Decision      consent.Decision `json:"decision"`
	Reason        string           `json:"reason,omitempty"`
	ReasonPrivate bool             `json:"reason_private,omitempty"`
}

type respondResponse struct {
	Match      *types.MatchRecord      `json:"match"`
	Connection *types.ConnectionRecord `json:"connection,omitempty"`
}

// handleCandidateRespond records the candidate's answer to an approved match.
func (s *Server) handleCandidateRespond(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "id", Message: "invalid match id"})
		return
	}
	candidateID, err := middleware.GetActorID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	record, connection, err := s.workflow.CandidateRespond(r.Context(), matchID, candidateID, req.Decision, req.Reason, req.ReasonPrivate)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, respondResponse{Match: record, Connection: connection})
}

// handleRevokeConsent withdraws the candidate's consent on an accepted match.
func (s *Server) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "id", Message: "invalid match id"})
		return
	}
	candidateID, err := middleware.GetActorID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	record, err := s.workflow.RevokeConsent(r.Context(), matchID, candidateID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, record)
}

// handleSweep expires every match past its deadline.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	closed, err := s.workflow.SweepExpired(r.Context())
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]int{"expired": closed})
}

type stageRequest struct {
	Stage types.PipelineStage `json:"stage"`
}

// handleAdvanceStage moves a connection along the hiring pipeline.
func (s *Server) handleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	connectionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "id", Message: "invalid connection id"})
		return
	}
	actorID, err := middleware.GetActorID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	connection, err := s.workflow.AdvanceStage(r.Context(), connectionID, actorID, req.Stage)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, connection)
}

func (s *Server) appendAudit(r *http.Request, event types.EventType, actorID string, details map[string]any) {
	if _, err := s.audit.Append(r.Context(), event, actorID, details); err != nil {
		s.log.Error("failed to append audit entry", zap.String("event", string(event)), zap.Error(err))
	}
}
