package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Profile is a practitioner account. Empty strings and nil pointers mean
// the field was never filled in.
type Profile struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Email           string `json:"email,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	FirmName        string `json:"firm_name,omitempty"`
	Specialization  string `json:"specialization,omitempty"`
	YearsOfPractice *int   `json:"years_of_practice,omitempty"`
	Address         string `json:"address,omitempty"`
	HomeAddress     string `json:"home_address,omitempty"`
	Gender          string `json:"gender,omitempty"`
	RoleID          string `json:"role_id,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
}

// HasYearsOfPractice reports whether a non-zero years_of_practice is set.
func (p Profile) HasYearsOfPractice() bool {
	return p.YearsOfPractice != nil && *p.YearsOfPractice > 0
}

// ProfessionalID is a bar or licensing record attached to a profile.
type ProfessionalID struct {
	ID             string   `json:"id"`
	ProfileID      string   `json:"profile_id"`
	Country        string   `json:"country,omitempty"`
	State          string   `json:"state,omitempty"`
	ProfessionalID string   `json:"professional_id,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
}

// HasCertifications reports whether any record carries at least one
// certification.
func HasCertifications(ids []ProfessionalID) bool {
	for _, id := range ids {
		if len(id.Certifications) > 0 {
			return true
		}
	}
	return false
}

// Feedback is a client rating of a practitioner.
type Feedback struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the rating is within [1,5].
func (f Feedback) Validate() error {
	if !finite(f.Rating) || f.Rating < 1 || f.Rating > 5 {
		return eris.Errorf("feedback %s: rating must be in [1,5], got %g", f.ID, f.Rating)
	}
	return nil
}

// ProfileMetrics is the persisted per-profile metric row, refreshed from
// the profile's current inputs.
type ProfileMetrics struct {
	ProfileID         string    `json:"profile_id"`
	WorkflowScore     int       `json:"workflow_score"`
	ProfileCompletion int       `json:"profile_completion"`
	ClientFeedback    float64   `json:"client_feedback"`
	Productivity      int       `json:"productivity"`
	UpdatedAt         time.Time `json:"updated_at"`
}
