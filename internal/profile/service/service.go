package service

import (
	"context"
	"errors"
	"log/slog"

	"profilegate/internal/profile/models"
	"profilegate/internal/profile/pipeline"
	dErrors "profilegate/pkg/domain-errors"
	audit "profilegate/pkg/platform/audit"
	"profilegate/pkg/platform/audit/publisher"
	"profilegate/pkg/platform/sentinel"
	"profilegate/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ProfileStore,AuditPublisher,AuditTrail,Reconciler

type ProfileStore interface {
	GetProfile(ctx context.Context, id models.ProfileID) (*models.StoredProfile, error)
	InsertProfile(ctx context.Context, p models.PersistedProfile) (models.ProfileID, error)
	UpdateProfile(ctx context.Context, id models.ProfileID, p models.PersistedProfile) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditTrail reads back the events recorded for a profile.
type AuditTrail interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
}

// Reconciler runs the reconciliation pipeline for one submission.
type Reconciler interface {
	Run(ctx context.Context, sub pipeline.Submission) (*models.Outcome, error)
}

// CreateCommand is a validated create-or-verify submission.
type CreateCommand struct {
	Claimed     models.ClaimedProfile
	IDImage     string
	SalaryImage string
	// BaselineID selects verify mode against an existing profile.
	BaselineID *models.ProfileID
}

// CreateResult describes an accepted submission.
type CreateResult struct {
	ID     models.ProfileID
	Mode   models.Mode
	Salary float64
}

// Service orchestrates profile onboarding and re-verification.
type Service struct {
	profiles     ProfileStore
	reconciler   Reconciler
	logger       *slog.Logger
	auditEmitter *auditEmitter
	auditTrail   AuditTrail
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditEmitter = newAuditEmitter(s.logger, publisher)
	}
}

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) {
		s.auditTrail = trail
	}
}

// New constructs a Service.
func New(profiles ProfileStore, reconciler Reconciler, opts ...Option) *Service {
	s := &Service{
		profiles:   profiles,
		reconciler: reconciler,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditEmitter == nil {
		s.auditEmitter = newAuditEmitter(s.logger, nil)
	}
	s.auditEmitter.logger = s.logger
	return s
}

// GetProfile returns a stored profile.
func (s *Service) GetProfile(ctx context.Context, id models.ProfileID) (*models.StoredProfile, error) {
	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Profile not found", "failed to load profile")
	}
	return p, nil
}

// ListAuditEvents returns the decisions recorded against a stored profile,
// oldest first.
func (s *Service) ListAuditEvents(ctx context.Context, id models.ProfileID) ([]audit.Event, error) {
	if s.auditTrail == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "audit trail unavailable")
	}
	if _, err := s.profiles.GetProfile(ctx, id); err != nil {
		return nil, lookupError(err, "Profile not found", "failed to load profile")
	}
	events, err := s.auditTrail.List(ctx, id.String())
	if err != nil {
		if errors.Is(err, publisher.ErrNotListable) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

// lookupError maps a store read failure onto the client-visible code.
func lookupError(err error, notFound, internal string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "profile store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internal)
	}
}

// CreateProfile reconciles the submission and persists it on acceptance.
// Create mode inserts a new profile; verify mode refreshes the baseline.
func (s *Service) CreateProfile(ctx context.Context, cmd CreateCommand) (*CreateResult, error) {
	sub := pipeline.Submission{
		Mode:        models.ModeCreate,
		Claimed:     cmd.Claimed,
		IDImage:     cmd.IDImage,
		SalaryImage: cmd.SalaryImage,
	}
	if cmd.BaselineID != nil {
		baseline, err := s.profiles.GetProfile(ctx, *cmd.BaselineID)
		if err != nil {
			return nil, lookupError(err, "baseline profile not found", "failed to load baseline profile")
		}
		sub.Mode = models.ModeVerify
		sub.Baseline = baseline
	}

	outcome, err := s.reconciler.Run(ctx, sub)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to run reconciliation")
	}

	if !outcome.IsAccepted() {
		s.logger.InfoContext(ctx, "profile rejected",
			"request_id", requestcontext.RequestID(ctx),
			"mode", string(sub.Mode),
			"kind", string(outcome.Rejection.Kind),
		)
		s.auditEmitter.emitRejected(ctx, sub, outcome.Rejection)
		return nil, rejectionError(outcome.Rejection)
	}

	id, err := s.persist(ctx, sub, outcome.Persisted)
	if err != nil {
		rejection := &models.Rejection{Kind: models.RejectionPersistenceError, Detail: "failed to save profile", Err: err}
		s.logger.ErrorContext(ctx, "failed to persist accepted profile",
			"request_id", requestcontext.RequestID(ctx),
			"mode", string(sub.Mode),
			"error", err,
		)
		s.auditEmitter.emitRejected(ctx, sub, rejection)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
	}

	s.logger.InfoContext(ctx, "profile accepted",
		"request_id", requestcontext.RequestID(ctx),
		"mode", string(sub.Mode),
		"profile_id", id.String(),
	)
	s.auditEmitter.emitAccepted(ctx, sub.Mode, id)

	return &CreateResult{ID: id, Mode: sub.Mode, Salary: outcome.Persisted.Salary}, nil
}

func (s *Service) persist(ctx context.Context, sub pipeline.Submission, p models.PersistedProfile) (models.ProfileID, error) {
	if sub.Mode == models.ModeVerify {
		if err := s.profiles.UpdateProfile(ctx, sub.Baseline.ID, p); err != nil {
			return 0, err
		}
		return sub.Baseline.ID, nil
	}
	return s.profiles.InsertProfile(ctx, p)
}

// rejectionError maps a pipeline rejection to the coded error returned to
// clients. The detail text is the client-visible description.
func rejectionError(r *models.Rejection) error {
	switch r.Kind {
	case models.RejectionTextMismatch:
		return dErrors.New(dErrors.CodeTextMismatch, r.Detail)
	case models.RejectionIdentityMismatch:
		return dErrors.New(dErrors.CodeIdentityMismatch, r.Detail)
	case models.RejectionSalaryMismatch:
		return dErrors.New(dErrors.CodeSalaryMismatch, r.Detail)
	case models.RejectionExtractionFailure:
		return dErrors.Wrap(r, dErrors.CodeExtractionFailed, r.Detail)
	default:
		return dErrors.Wrap(r, dErrors.CodeInternal, r.Detail)
	}
}
