// Package pipeline reconciles a submitted profile against its ID and salary
// documents. Stages run strictly in order and the first failure decides the
// outcome; later stages never run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"profilegate/internal/profile/metrics"
	"profilegate/internal/profile/models"
)

//go:generate mockgen -source=pipeline.go -destination=mocks/mocks.go -package=mocks Extractor

const tracerName = "profilegate/internal/profile/pipeline"

// Stage names used for spans, metrics and logs.
const (
	StageBaseline        = "baseline_check"
	StageExtractIdentity = "extract_identity"
	StageReconcileID     = "reconcile_identity"
	StageExtractSalary   = "extract_salary"
	StageReconcileSalary = "reconcile_salary"
)

var (
	ErrBaselineRequired = errors.New("verify mode requires a baseline profile")
	ErrUnknownMode      = errors.New("unknown pipeline mode")
)

// Extractor reads structured data off document images. Errors mean the
// collaborator itself failed; unreadable content is reported through empty
// identity fields or a zero salary instead.
type Extractor interface {
	ExtractIdentity(ctx context.Context, image string) (models.ExtractedIdentity, error)
	ExtractSalary(ctx context.Context, image string) (float64, error)
}

// Submission is one incoming request to reconcile.
type Submission struct {
	Mode        models.Mode
	Claimed     models.ClaimedProfile
	Baseline    *models.StoredProfile
	IDImage     string
	SalaryImage string
}

// Pipeline holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	extractor Extractor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// New constructs a Pipeline around the extraction collaborator.
func New(extractor Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the stages for one submission. The error return is reserved
// for invalid invocations; every content or collaborator failure comes back
// as a rejected Outcome.
func (p *Pipeline) Run(ctx context.Context, sub Submission) (*models.Outcome, error) {
	switch sub.Mode {
	case models.ModeCreate:
	case models.ModeVerify:
		if sub.Baseline == nil {
			return nil, ErrBaselineRequired
		}
	default:
		return nil, ErrUnknownMode
	}

	ctx, span := p.tracer.Start(ctx, "profile.pipeline",
		trace.WithAttributes(attribute.String("profile.mode", string(sub.Mode))))
	defer span.End()

	outcome := p.run(ctx, sub)

	kind := ""
	if outcome.Rejection != nil {
		kind = string(outcome.Rejection.Kind)
		span.SetAttributes(attribute.String("profile.rejection", kind))
	}
	span.SetAttributes(attribute.String("profile.outcome", string(outcome.Status)))
	p.metrics.IncrementOutcome(string(sub.Mode), string(outcome.Status), kind)
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, sub Submission) *models.Outcome {
	claimed := sub.Claimed

	// Baseline first so a text mismatch never costs an OCR call.
	if sub.Mode == models.ModeVerify {
		err := p.stage(ctx, StageBaseline, func(context.Context) error {
			return CheckBaseline(claimed, *sub.Baseline)
		})
		if err != nil {
			return models.Rejected(toRejection(err))
		}
	}

	var identity models.ExtractedIdentity
	err := p.stage(ctx, StageExtractIdentity, func(ctx context.Context) error {
		var err error
		identity, err = p.extractor.ExtractIdentity(ctx, sub.IDImage)
		if err != nil {
			return extractionFailure(detailIDExtraction, err)
		}
		return nil
	})
	if err != nil {
		return models.Rejected(toRejection(err))
	}

	err = p.stage(ctx, StageReconcileID, func(context.Context) error {
		return ReconcileIdentity(claimed, identity)
	})
	if err != nil {
		return models.Rejected(toRejection(err))
	}

	var salary float64
	err = p.stage(ctx, StageExtractSalary, func(ctx context.Context) error {
		var err error
		salary, err = p.extractor.ExtractSalary(ctx, sub.SalaryImage)
		if err != nil {
			return extractionFailure(detailSalaryExtraction, err)
		}
		return nil
	})
	if err != nil {
		return models.Rejected(toRejection(err))
	}

	err = p.stage(ctx, StageReconcileSalary, func(context.Context) error {
		return ReconcileSalary(claimed.ClaimedSalary, salary)
	})
	if err != nil {
		return models.Rejected(toRejection(err))
	}

	return models.Accepted(models.PersistedProfile{
		LastName:    claimed.LastName,
		FirstName:   claimed.FirstName,
		DateOfBirth: claimed.DateOfBirth,
		Salary:      salary,
	})
}

// stage runs fn inside a span and records its latency.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "profile.stage."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = string(toRejection(err).Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		p.logger.DebugContext(ctx, "pipeline stage failed",
			"stage", name,
			"kind", result,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	p.metrics.ObserveStage(name, result, elapsed)
	return err
}

func extractionFailure(detail string, err error) error {
	return &models.Rejection{Kind: models.RejectionExtractionFailure, Detail: detail, Err: err}
}

// toRejection unwraps the stage error. Anything that is not already a
// rejection came from the collaborator side.
func toRejection(err error) *models.Rejection {
	var r *models.Rejection
	if errors.As(err, &r) {
		return r
	}
	return &models.Rejection{Kind: models.RejectionExtractionFailure, Detail: err.Error(), Err: err}
}
