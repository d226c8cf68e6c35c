package types

import "math"

// Weights applied when combining sub-scores into an overall compatibility
// score. They must sum to 1.0.
const (
	SkillsWeight         = 0.40
	AccommodationsWeight = 0.30
	PreferencesWeight    = 0.20
	LocationWeight       = 0.10
)

// ScoreBreakdown holds the four compatibility sub-scores, each 0-100.
type ScoreBreakdown struct {
	Skills         int `json:"skills"`
	Accommodations int `json:"accommodations"`
	Preferences    int `json:"preferences"`
	Location       int `json:"location"`
}

// Overall returns the rounded weighted sum of the sub-scores.
func (b ScoreBreakdown) Overall() int {
	sum := SkillsWeight*float64(b.Skills) +
		AccommodationsWeight*float64(b.Accommodations) +
		PreferencesWeight*float64(b.Preferences) +
		LocationWeight*float64(b.Location)
	return int(math.Round(sum))
}
