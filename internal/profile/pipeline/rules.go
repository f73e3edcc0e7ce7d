package pipeline

import (
	"math"
	"strings"

	"profilegate/internal/profile/models"
)

// SalaryTolerance is the largest accepted absolute difference between the
// claimed and the document salary. The bound is inclusive.
const SalaryTolerance = 50.0

// Rejection details surfaced to callers.
const (
	detailTextMismatch     = "Text data mismatch"
	detailIdentityMismatch = "ID data mismatch"
	detailSalaryMismatch   = "Salary data mismatch"
	detailIDExtraction     = "OCR failed for ID"
	detailSalaryExtraction = "OCR failed for Salary Slip"
)

// CheckBaseline compares submitted text against a stored profile. Names are
// compared case-sensitively and the date of birth as a calendar date.
// This is pure domain logic with no I/O.
func CheckBaseline(claimed models.ClaimedProfile, baseline models.StoredProfile) error {
	if claimed.LastName != baseline.LastName ||
		claimed.FirstName != baseline.FirstName ||
		claimed.DateOfBirthText() != baseline.DateOfBirth.Format(models.DateLayout) {
		return &models.Rejection{Kind: models.RejectionTextMismatch, Detail: detailTextMismatch}
	}
	return nil
}

// ReconcileIdentity checks the claimed identity against the ID document.
//
// Rule order (short-circuit):
//  1. Both names equal ignoring case: accepted, date of birth is not looked at.
//  2. Otherwise the claimed date of birth (YYYY-MM-DD) must equal the document
//     text verbatim, which accepts the identity despite the name mismatch.
//  3. Otherwise identity_mismatch.
func ReconcileIdentity(claimed models.ClaimedProfile, extracted models.ExtractedIdentity) error {
	if namesMatch(claimed, extracted) {
		return nil
	}
	if claimed.DateOfBirthText() == extracted.DateOfBirth {
		return nil
	}
	return &models.Rejection{Kind: models.RejectionIdentityMismatch, Detail: detailIdentityMismatch}
}

func namesMatch(claimed models.ClaimedProfile, extracted models.ExtractedIdentity) bool {
	return strings.ToLower(extracted.LastName) == strings.ToLower(claimed.LastName) &&
		strings.ToLower(extracted.FirstName) == strings.ToLower(claimed.FirstName)
}

// ReconcileSalary accepts when the document amount is within SalaryTolerance
// of the claim.
func ReconcileSalary(claimed, extracted float64) error {
	if math.Abs(extracted-claimed) > SalaryTolerance {
		return &models.Rejection{Kind: models.RejectionSalaryMismatch, Detail: detailSalaryMismatch}
	}
	return nil
}
