package handler

import (
	"profilegate/internal/profile/models"
	"profilegate/internal/profile/service"
	audit "profilegate/pkg/platform/audit"
)

// ProfileResponse is the HTTP response for GET /profile/{id}.
type ProfileResponse struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	DateOfBirth string `json:"date_of_birth"`
}

// SuccessResponse is the HTTP response for an accepted POST /create-profile.
type SuccessResponse struct {
	Status string  `json:"status"`
	Salary float64 `json:"salary"`
	ID     int64   `json:"id"`
}

// AuditTrailResponse is the HTTP response for GET /profile/{id}/audit.
type AuditTrailResponse struct {
	Events []audit.Event `json:"events"`
}

func toProfileResponse(p *models.StoredProfile) *ProfileResponse {
	return &ProfileResponse{
		LastName:    p.LastName,
		FirstName:   p.FirstName,
		DateOfBirth: p.DateOfBirth.Format(models.DateLayout),
	}
}

func toSuccessResponse(r *service.CreateResult) *SuccessResponse {
	return &SuccessResponse{
		Status: "success",
		Salary: r.Salary,
		ID:     int64(r.ID),
	}
}
