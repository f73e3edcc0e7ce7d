package service

import (
	"context"
	"log/slog"

	"profilegate/internal/profile/models"
	"profilegate/internal/profile/pipeline"
	audit "profilegate/pkg/platform/audit"
	"profilegate/pkg/platform/middleware/metadata"
	"profilegate/pkg/requestcontext"
)

// auditEmitter turns decisions into audit events. Publishing failures are
// logged and never fail the request.
type auditEmitter struct {
	logger    *slog.Logger
	publisher AuditPublisher
}

func newAuditEmitter(logger *slog.Logger, publisher AuditPublisher) *auditEmitter {
	return &auditEmitter{logger: logger, publisher: publisher}
}

func (e *auditEmitter) emitAccepted(ctx context.Context, mode models.Mode, id models.ProfileID) {
	e.emit(ctx, audit.Event{
		Action:   string(audit.EventProfileAccepted),
		Subject:  id.String(),
		Mode:     string(mode),
		Decision: string(models.OutcomeAccepted),
	})
}

func (e *auditEmitter) emitRejected(ctx context.Context, sub pipeline.Submission, r *models.Rejection) {
	event := audit.Event{
		Action:   string(audit.EventProfileRejected),
		Mode:     string(sub.Mode),
		Decision: string(models.OutcomeRejected),
		Reason:   string(r.Kind),
		Detail:   r.Detail,
	}
	if sub.Baseline != nil {
		event.Subject = sub.Baseline.ID.String()
	}
	e.emit(ctx, event)
}

func (e *auditEmitter) emit(ctx context.Context, event audit.Event) {
	if e.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = metadata.ClientIP(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	if err := e.publisher.Emit(ctx, event); err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
