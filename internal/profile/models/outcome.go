package models

// RejectionKind names the stage that stopped a submission.
type RejectionKind string

const (
	RejectionTextMismatch      RejectionKind = "text_mismatch"
	RejectionIdentityMismatch  RejectionKind = "identity_mismatch"
	RejectionSalaryMismatch    RejectionKind = "salary_mismatch"
	RejectionExtractionFailure RejectionKind = "extraction_failure"
	RejectionPersistenceError  RejectionKind = "persistence_error"
)

// IsContentMismatch reports whether the rejection is about the submitted
// content rather than a failing collaborator.
func (k RejectionKind) IsContentMismatch() bool {
	switch k {
	case RejectionTextMismatch, RejectionIdentityMismatch, RejectionSalaryMismatch:
		return true
	default:
		return false
	}
}

// Rejection is a terminal stage failure. It doubles as an error so stage
// functions can return it directly.
type Rejection struct {
	Kind   RejectionKind
	Detail string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Detail + ": " + r.Err.Error()
	}
	return r.Detail
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// OutcomeStatus tags an Outcome.
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
)

// Outcome is the single result of a pipeline run. Persisted is set only when
// accepted; Rejection only when rejected.
type Outcome struct {
	Status    OutcomeStatus
	Persisted PersistedProfile
	Rejection *Rejection
}

func Accepted(p PersistedProfile) *Outcome {
	return &Outcome{Status: OutcomeAccepted, Persisted: p}
}

func Rejected(r *Rejection) *Outcome {
	return &Outcome{Status: OutcomeRejected, Rejection: r}
}

func (o *Outcome) IsAccepted() bool {
	return o != nil && o.Status == OutcomeAccepted
}
