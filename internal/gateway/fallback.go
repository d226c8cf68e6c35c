package gateway

import (
	"fmt"
	"math"
	"strings"

	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/types"
)

// TransparencyDisclaimer accompanies every match explanation. It names the
// scoring factors, states that human review is required, and states the
// candidate's right to contest.
const TransparencyDisclaimer = "This match was scored on four factors: skills overlap, " +
	"accommodation coverage, preference alignment and location compatibility. " +
	"A human reviewer must approve every match before either party is contacted, " +
	"and the candidate may contest the outcome at any time."

// discriminatoryTerms are flagged by the rule-based posting analyzer.
var discriminatoryTerms = []string{
	"rockstar",
	"ninja",
	"guru",
	"fast-paced environment",
	"work hard play hard",
	"thick skin",
	"culture fit",
	"high-pressure",
}

// FallbackInclusivity computes the deterministic posting analysis:
// score = min(50 + 10*min(accommodationCount, 6), 100), quality "good" when
// at least three accommodations are listed.
func FallbackInclusivity(job *types.JobPosting) *InclusivityAnalysis {
	count := len(job.Accommodations)
	capped := count
	if capped > 6 {
		capped = 6
	}
	score := 50 + 10*capped
	if score > 100 {
		score = 100
	}
	quality := QualityPoor
	if count >= 3 {
		quality = QualityGood
	}

	analysis := &InclusivityAnalysis{
		Score:    score,
		Quality:  quality,
		Fallback: true,
	}

	text := strings.ToLower(job.Title + " " + stripHTML(job.Description))
	for _, term := range discriminatoryTerms {
		if strings.Contains(text, term) {
			analysis.Issues = append(analysis.Issues, fmt.Sprintf("posting contains the phrase %q", term))
		}
	}
	if count < 3 {
		analysis.Suggestions = append(analysis.Suggestions, "list at least three workplace accommodations")
	}
	return analysis
}

// FallbackEvaluation computes the deterministic candidate evaluation:
// fit = round(100 * |candidateSkills ∩ requiredSkills| / |requiredSkills|),
// or 50 when the job lists no required skills.
func FallbackEvaluation(candidate *types.CandidateProfile, job *types.JobPosting) *CandidateEvaluation {
	required := cache.NormalizeSet(job.RequiredSkills)
	offered := cache.NormalizeSet(candidate.Skills)

	fit := 50
	var strengths, gaps []string
	if len(required) > 0 {
		have := make(map[string]bool, len(offered))
		for _, skill := range offered {
			have[skill] = true
		}
		matched := 0
		for _, skill := range required {
			if have[skill] {
				matched++
				strengths = append(strengths, skill)
			} else {
				gaps = append(gaps, skill)
			}
		}
		fit = int(math.Round(100 * float64(matched) / float64(len(required))))
	}

	recommendation := RecommendationWeak
	switch {
	case fit >= 85:
		recommendation = RecommendationStrong
	case fit >= 70:
		recommendation = RecommendationGood
	case fit >= 50:
		recommendation = RecommendationModerate
	}

	return &CandidateEvaluation{
		FitScore:       fit,
		Recommendation: recommendation,
		Strengths:      strengths,
		Gaps:           gaps,
		Fallback:       true,
	}
}

// FallbackExplanation renders the templated explanation from the
// already-computed breakdown. It is also used as the provisional explanation
// on fresh match records until the background inference explanation lands.
func FallbackExplanation(job *types.JobPosting, score int, breakdown types.ScoreBreakdown) *MatchExplanation {
	summary := fmt.Sprintf(
		"This candidate scored %d/100 for %q. The score combines skills overlap (%d/100), "+
			"accommodation coverage (%d/100), preference alignment (%d/100) and location compatibility (%d/100).",
		score, job.Title, breakdown.Skills, breakdown.Accommodations, breakdown.Preferences, breakdown.Location)

	return &MatchExplanation{
		Summary: summary,
		Factors: []string{
			fmt.Sprintf("skills overlap: %d/100 (weight %.0f%%)", breakdown.Skills, types.SkillsWeight*100),
			fmt.Sprintf("accommodation coverage: %d/100 (weight %.0f%%)", breakdown.Accommodations, types.AccommodationsWeight*100),
			fmt.Sprintf("preference alignment: %d/100 (weight %.0f%%)", breakdown.Preferences, types.PreferencesWeight*100),
			fmt.Sprintf("location compatibility: %d/100 (weight %.0f%%)", breakdown.Location, types.LocationWeight*100),
		},
		Disclaimer: TransparencyDisclaimer,
		Fallback:   true,
	}
}
