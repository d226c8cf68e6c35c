package gateway

import (
	"fmt"
	"strings"

	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/types"
)

// Prompts are built only from normalized inputs so that semantically
// identical requests produce byte-identical prompts (and cache keys).

func buildInclusivityPrompt(job *types.JobPosting) string {
	var sb strings.Builder
	sb.WriteString(`You are an expert in inclusive hiring for neurodivergent candidates.
Assess how inclusive and accessible this job posting is. Consider the listed
workplace accommodations, exclusionary or ableist language, and unnecessary
requirements that screen out qualified neurodivergent applicants.

Return ONLY valid JSON matching this exact structure:
{
  "score": 0-100 (required) // overall inclusivity score
  "quality": "good" or "poor" (required)
  "issues": ["string"] // concrete problems found in the posting
  "suggestions": ["string"] // concrete improvements
}

IMPORTANT:
- Return ONLY the JSON object, no markdown, no explanation, no code blocks.

Job posting:
`)
	fmt.Fprintf(&sb, "Title: %s\n", cache.NormalizeText(job.Title))
	fmt.Fprintf(&sb, "Description: %s\n", normalizeDescription(job.Description))
	fmt.Fprintf(&sb, "Required skills: %s\n", cache.JoinSet(job.RequiredSkills))
	fmt.Fprintf(&sb, "Accommodations offered: %s\n", cache.JoinSet(job.Accommodations))
	fmt.Fprintf(&sb, "Location: %s, work mode: %s\n", cache.NormalizeText(job.Location), job.WorkMode)
	return sb.String()
}

func buildEvaluationPrompt(candidate *types.CandidateProfile, job *types.JobPosting) string {
	var sb strings.Builder
	sb.WriteString(`You are an expert recruiter specializing in neurodivergent talent.
Evaluate how well this candidate fits the job. Judge on demonstrated skills
and experience, not on communication style or gaps in employment history.

Return ONLY valid JSON matching this exact structure:
{
  "fit_score": 0-100 (required)
  "recommendation": one of "strong_match", "good_match", "moderate_match", "weak_match" (required)
  "strengths": ["string"] // candidate strengths relevant to this job
  "gaps": ["string"] // missing skills or experience
}

IMPORTANT:
- Return ONLY the JSON object, no markdown, no explanation, no code blocks.

Candidate:
`)
	fmt.Fprintf(&sb, "Skills: %s\n", cache.JoinSet(candidate.Skills))
	fmt.Fprintf(&sb, "Experience: %s\n", normalizeDescription(candidate.Experience))
	if candidate.AssessmentScore != nil {
		fmt.Fprintf(&sb, "Assessment score: %d/100\n", *candidate.AssessmentScore)
	}
	sb.WriteString("\nJob:\n")
	fmt.Fprintf(&sb, "Title: %s\n", cache.NormalizeText(job.Title))
	fmt.Fprintf(&sb, "Required skills: %s\n", cache.JoinSet(job.RequiredSkills))
	fmt.Fprintf(&sb, "Description: %s\n", normalizeDescription(job.Description))
	return sb.String()
}

func buildExplanationPrompt(candidate *types.CandidateProfile, job *types.JobPosting, score int, breakdown types.ScoreBreakdown) string {
	var sb strings.Builder
	sb.WriteString(`You are writing a plain-language explanation of an algorithmic match
score for a candidate and a hiring manager. Cite only the provided sub-scores;
do not invent factors or re-score anything.

Return ONLY valid JSON matching this exact structure:
{
  "summary": "string" (required) // 2-4 sentences explaining the score
  "factors": ["string"] // one line per sub-score, highest first
}

IMPORTANT:
- Return ONLY the JSON object, no markdown, no explanation, no code blocks.

`)
	fmt.Fprintf(&sb, "Overall score: %d/100\n", score)
	fmt.Fprintf(&sb, "Skills overlap: %d/100 (weight %.0f%%)\n", breakdown.Skills, types.SkillsWeight*100)
	fmt.Fprintf(&sb, "Accommodation coverage: %d/100 (weight %.0f%%)\n", breakdown.Accommodations, types.AccommodationsWeight*100)
	fmt.Fprintf(&sb, "Preference alignment: %d/100 (weight %.0f%%)\n", breakdown.Preferences, types.PreferencesWeight*100)
	fmt.Fprintf(&sb, "Location compatibility: %d/100 (weight %.0f%%)\n", breakdown.Location, types.LocationWeight*100)
	fmt.Fprintf(&sb, "Candidate skills: %s\n", cache.JoinSet(candidate.Skills))
	fmt.Fprintf(&sb, "Job title: %s, required skills: %s\n", cache.NormalizeText(job.Title), cache.JoinSet(job.RequiredSkills))
	return sb.String()
}
