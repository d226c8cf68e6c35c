// Package gateway is the rate-limited, cached entry point to the external
// inference backend. Every operation returns a valid structured result: on
// any backend failure the deterministic rule-based fallback is returned with
// Fallback=true, never an error.
package gateway

// Inclusivity quality labels.
const (
	QualityGood = "good"
	QualityPoor = "poor"
)

// Candidate evaluation recommendation labels.
const (
	RecommendationStrong   = "strong_match"
	RecommendationGood     = "good_match"
	RecommendationModerate = "moderate_match"
	RecommendationWeak     = "weak_match"
)

// InclusivityAnalysis is the result of analyzing a job posting for
// inclusive language and accommodation coverage.
type InclusivityAnalysis struct {
	Score       int      `json:"score"`
	Quality     string   `json:"quality"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Fallback    bool     `json:"fallback"`
}

// CandidateEvaluation is the result of evaluating a candidate against a job.
type CandidateEvaluation struct {
	FitScore       int      `json:"fit_score"`
	Recommendation string   `json:"recommendation"`
	Strengths      []string `json:"strengths,omitempty"`
	Gaps           []string `json:"gaps,omitempty"`
	Fallback       bool     `json:"fallback"`
}

// MatchExplanation is the human-readable explanation of an already-computed
// match score. The disclaimer names the scoring factors and the subject's
// right to contest, and is always present.
type MatchExplanation struct {
	Summary    string   `json:"summary"`
	Factors    []string `json:"factors,omitempty"`
	Disclaimer string   `json:"disclaimer"`
	Fallback   bool     `json:"fallback"`
}
