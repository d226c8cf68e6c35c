// Package matching scores candidate/job pairings and proposes matches into
// the consent workflow. Scores are deterministic; the inference backend is
// only consulted for the human-readable explanation, off the critical path.
package matching

import (
	"math"
	"strings"

	"github.com/neurobridge/matchcore/internal/cache"
	"github.com/neurobridge/matchcore/internal/types"
)

// Score computes the four sub-scores for a candidate/job pairing. Each
// sub-score is 0-100; the overall score is the weighted combination exposed
// by types.ScoreBreakdown.
func Score(candidate *types.CandidateProfile, job *types.JobPosting) types.ScoreBreakdown {
	return types.ScoreBreakdown{
		Skills:         skillsOverlap(candidate.Skills, job.RequiredSkills),
		Accommodations: accommodationCoverage(candidate.AccommodationsNeeded, job.Accommodations),
		Preferences:    preferenceAlignment(candidate, job),
		Location:       locationCompatibility(candidate, job),
	}
}

// skillsOverlap is the fraction of required skills the candidate has.
// A job with no required skills constrains nothing.
func skillsOverlap(candidateSkills, requiredSkills []string) int {
	required := cache.NormalizeSet(requiredSkills)
	if len(required) == 0 {
		return 100
	}
	return coverage(cache.NormalizeSet(candidateSkills), required)
}

// accommodationCoverage is the fraction of the candidate's accommodation
// needs the job explicitly offers. A candidate with no stated needs is
// fully covered.
func accommodationCoverage(needed, offered []string) int {
	need := cache.NormalizeSet(needed)
	if len(need) == 0 {
		return 100
	}
	return coverage(cache.NormalizeSet(offered), need)
}

// coverage returns round(100 * |have ∩ want| / |want|). want must be
// non-empty.
func coverage(have, want []string) int {
	set := make(map[string]bool, len(have))
	for _, v := range have {
		set[v] = true
	}
	matched := 0
	for _, v := range want {
		if set[v] {
			matched++
		}
	}
	return int(math.Round(100 * float64(matched) / float64(len(want))))
}

// preferenceAlignment scores the job's work mode and location against the
// candidate's stated preferences. Each stated preference dimension
// contributes equally; a candidate with no stated preferences scores a
// neutral 50.
func preferenceAlignment(candidate *types.CandidateProfile, job *types.JobPosting) int {
	var dimensions, satisfied int

	if len(candidate.PreferredWorkModes) > 0 {
		dimensions++
		for _, mode := range candidate.PreferredWorkModes {
			if strings.EqualFold(mode, job.WorkMode) {
				satisfied++
				break
			}
		}
	}
	if len(candidate.PreferredLocations) > 0 {
		dimensions++
		if locationPreferred(candidate.PreferredLocations, job) {
			satisfied++
		}
	}

	if dimensions == 0 {
		return 50
	}
	return int(math.Round(100 * float64(satisfied) / float64(dimensions)))
}

// locationPreferred reports whether the job's location satisfies any of the
// candidate's preferred locations. Remote jobs satisfy any preference.
func locationPreferred(preferred []string, job *types.JobPosting) bool {
	if job.WorkMode == types.WorkModeRemote {
		return true
	}
	for _, loc := range preferred {
		if strings.EqualFold(strings.TrimSpace(loc), strings.TrimSpace(job.Location)) {
			return true
		}
	}
	return false
}

// locationCompatibility scores where the work happens: remote jobs are fully
// compatible with anyone, an on-site job in a preferred location is fully
// compatible, hybrid elsewhere is partial, and an on-site job somewhere the
// candidate did not name is incompatible.
func locationCompatibility(candidate *types.CandidateProfile, job *types.JobPosting) int {
	if job.WorkMode == types.WorkModeRemote {
		return 100
	}
	for _, loc := range candidate.PreferredLocations {
		if strings.EqualFold(strings.TrimSpace(loc), strings.TrimSpace(job.Location)) {
			return 100
		}
	}
	if job.WorkMode == types.WorkModeHybrid {
		return 50
	}
	return 0
}
