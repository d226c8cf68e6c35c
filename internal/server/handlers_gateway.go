package server

import (
	"encoding/json"
	"net/http"

	"github.com/neurobridge/matchcore/internal/types"
)

// handleAnalyzePosting runs the inclusivity analysis for a job posting.
func (s *Server) handleAnalyzePosting(w http.ResponseWriter, r *http.Request) {
	var job types.JobPosting
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	result, err := s.gateway.AnalyzePostingInclusivity(r.Context(), s.callerID(r), &job)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

type evaluateRequest struct {
	Candidate types.CandidateProfile `json:"candidate"`
	Job       types.JobPosting       `json:"job"`
}

// handleEvaluateCandidate runs the candidate fit evaluation.
func (s *Server) handleEvaluateCandidate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	result, err := s.gateway.EvaluateCandidate(r.Context(), s.callerID(r), &req.Candidate, &req.Job)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

type explainRequest struct {
	Candidate types.CandidateProfile `json:"candidate"`
	Job       types.JobPosting       `json:"job"`
	Score     int                    `json:"score"`
	Breakdown types.ScoreBreakdown   `json:"breakdown"`
}

// handleExplainMatch renders the explanation for an already-computed score.
func (s *Server) handleExplainMatch(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	result, err := s.gateway.ExplainMatch(r.Context(), s.callerID(r), &req.Candidate, &req.Job, req.Score, req.Breakdown)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}
