// Package types provides type definitions for the records flowing through the
// matching decision core. JobPosting and CandidateProfile are read-only
// projections of records owned by the actor directories; the core never writes
// them back.
package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// WorkMode values accepted on a job posting.
const (
	WorkModeRemote = "remote"
	WorkModeHybrid = "hybrid"
	WorkModeOnsite = "onsite"
)

// JobPosting represents a company's job posting as read by the core.
type JobPosting struct {
	ID             uuid.UUID `json:"id" validate:"required"`
	CompanyID      uuid.UUID `json:"company_id" validate:"required"`
	Title          string    `json:"title" validate:"required,min=1"`
	Description    string    `json:"description"`
	RequiredSkills []string  `json:"required_skills"`
	Accommodations []string  `json:"accommodations" validate:"required,min=1"`
	Location       string    `json:"location"`
	WorkMode       string    `json:"work_mode" validate:"omitempty,oneof=remote hybrid onsite"`
}

// CandidateProfile represents an individual's profile as read by the core.
// AssessmentScore is nil when the candidate has not completed an assessment.
type CandidateProfile struct {
	ID                   uuid.UUID `json:"id" validate:"required"`
	Skills               []string  `json:"skills"`
	AccommodationsNeeded []string  `json:"accommodations_needed"`
	Bio                  string    `json:"bio"`
	Experience           string    `json:"experience"`
	AssessmentScore      *int      `json:"assessment_score,omitempty" validate:"omitempty,min=0,max=100"`
	PreferredWorkModes   []string  `json:"preferred_work_modes,omitempty"`
	PreferredLocations   []string  `json:"preferred_locations,omitempty"`
}

// Validate validates the JobPosting using the validator.
func (j *JobPosting) Validate() error {
	validate := validator.New()
	if err := validate.Struct(j); err != nil {
		return &ValidationError{Field: "job_posting", Message: err.Error()}
	}
	return nil
}

// Validate validates the CandidateProfile using the validator.
func (c *CandidateProfile) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return &ValidationError{Field: "candidate_profile", Message: err.Error()}
	}
	return nil
}
