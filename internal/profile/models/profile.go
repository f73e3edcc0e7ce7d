package models

import (
	"strconv"
	"time"

	dErrors "profilegate/pkg/domain-errors"
)

// DateLayout is the textual calendar-date form used on the wire and when a
// claimed date of birth is compared against document text.
const DateLayout = "2006-01-02"

// ProfileID is the store-assigned identifier of a persisted profile.
type ProfileID int64

func (id ProfileID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseProfileID parses a positive decimal profile id.
func ParseProfileID(s string) (ProfileID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "profile id must be a positive integer")
	}
	return ProfileID(n), nil
}

// ClaimedProfile is what the submitter asserts. It is never mutated during a run.
type ClaimedProfile struct {
	LastName      string
	FirstName     string
	DateOfBirth   time.Time
	ClaimedSalary float64
}

// DateOfBirthText renders the claimed date of birth as YYYY-MM-DD.
func (c ClaimedProfile) DateOfBirthText() string {
	return c.DateOfBirth.Format(DateLayout)
}

// ExtractedIdentity holds the identity fields read off an ID document.
// A field the model could not read is the empty string. DateOfBirth is raw
// text and is never parsed.
type ExtractedIdentity struct {
	LastName    string
	FirstName   string
	DateOfBirth string
}

// StoredProfile is a previously persisted record.
type StoredProfile struct {
	ID          ProfileID
	LastName    string
	FirstName   string
	DateOfBirth time.Time
	Salary      float64
	CreatedAt   time.Time
}

// PersistedProfile is the record written on acceptance. Salary always comes
// from the salary document, never from the claim.
type PersistedProfile struct {
	LastName    string
	FirstName   string
	DateOfBirth time.Time
	Salary      float64
}

// Mode selects between onboarding and re-verification of an existing profile.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeVerify Mode = "verify"
)

func (m Mode) IsValid() bool {
	return m == ModeCreate || m == ModeVerify
}
