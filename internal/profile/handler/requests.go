package handler

import (
	"strings"
	"time"

	"profilegate/internal/profile/models"
	"profilegate/internal/profile/service"
	dErrors "profilegate/pkg/domain-errors"
)

const maxNameLength = 200

// ProfileData is the claimed identity and salary.
type ProfileData struct {
	LastName    string   `json:"last_name"`
	FirstName   string   `json:"first_name"`
	DateOfBirth string   `json:"date_of_birth"`
	Salary      *float64 `json:"salary"`
}

// CreateProfileRequest is the HTTP request body for POST /create-profile.
type CreateProfileRequest struct {
	ProfileData *ProfileData `json:"profile_data"`
	// TextData is the older name of ProfileData, still accepted.
	TextData   *ProfileData `json:"text_data,omitempty"`
	Image1     string       `json:"image1"`
	Image2     string       `json:"image2"`
	BaselineID *int64       `json:"baseline_id,omitempty"`

	// Parsed values (populated by Validate)
	claimed models.ClaimedProfile
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	data := r.ProfileData
	if data == nil {
		data = r.TextData
	}
	if data == nil {
		return dErrors.New(dErrors.CodeValidation, "profile_data is required")
	}

	// Names are kept verbatim; the baseline comparison is exact.
	if strings.TrimSpace(data.LastName) == "" {
		return dErrors.New(dErrors.CodeValidation, "profile_data.last_name is required")
	}
	if strings.TrimSpace(data.FirstName) == "" {
		return dErrors.New(dErrors.CodeValidation, "profile_data.first_name is required")
	}
	if len(data.LastName) > maxNameLength || len(data.FirstName) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "names must be at most 200 characters")
	}

	dob, err := time.Parse(models.DateLayout, strings.TrimSpace(data.DateOfBirth))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "profile_data.date_of_birth must be YYYY-MM-DD")
	}

	if data.Salary == nil {
		return dErrors.New(dErrors.CodeValidation, "profile_data.salary is required")
	}
	if *data.Salary < 0 {
		return dErrors.New(dErrors.CodeValidation, "profile_data.salary must not be negative")
	}

	if strings.TrimSpace(r.Image1) == "" {
		return dErrors.New(dErrors.CodeValidation, "image1 is required")
	}
	if strings.TrimSpace(r.Image2) == "" {
		return dErrors.New(dErrors.CodeValidation, "image2 is required")
	}

	if r.BaselineID != nil && *r.BaselineID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "baseline_id must be a positive integer")
	}

	r.claimed = models.ClaimedProfile{
		LastName:      data.LastName,
		FirstName:     data.FirstName,
		DateOfBirth:   dob,
		ClaimedSalary: *data.Salary,
	}
	return nil
}

// Command converts the validated request into a service command.
func (r *CreateProfileRequest) Command() service.CreateCommand {
	cmd := service.CreateCommand{
		Claimed:     r.claimed,
		IDImage:     r.Image1,
		SalaryImage: r.Image2,
	}
	if r.BaselineID != nil {
		id := models.ProfileID(*r.BaselineID)
		cmd.BaselineID = &id
	}
	return cmd
}
