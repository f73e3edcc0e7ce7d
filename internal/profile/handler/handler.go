package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"profilegate/internal/profile/models"
	"profilegate/internal/profile/service"
	dErrors "profilegate/pkg/domain-errors"
	audit "profilegate/pkg/platform/audit"
	"profilegate/pkg/platform/httputil"
	"profilegate/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the profile operations exposed over HTTP.
type Service interface {
	GetProfile(ctx context.Context, id models.ProfileID) (*models.StoredProfile, error)
	CreateProfile(ctx context.Context, cmd service.CreateCommand) (*service.CreateResult, error)
	ListAuditEvents(ctx context.Context, id models.ProfileID) ([]audit.Event, error)
}

// Handler wires profile endpoints to the profile service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a profile handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts profile endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/profile/{id}", h.HandleGetProfile)
	r.Get("/profile/{id}/audit", h.HandleListAuditEvents)
	r.Post("/create-profile", h.HandleCreateProfile)
}

// HandleGetProfile handles GET /profile/{id} requests.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := models.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.service.GetProfile(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to get profile",
				"request_id", requestID,
				"profile_id", id.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

// HandleListAuditEvents handles GET /profile/{id}/audit requests.
func (h *Handler) HandleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := models.ParseProfileID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.ListAuditEvents(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to list audit events",
				"request_id", requestcontext.RequestID(ctx),
				"profile_id", id.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &AuditTrailResponse{Events: events})
}

// HandleCreateProfile handles POST /create-profile requests. A baseline_id
// switches the submission into re-verification of that profile.
func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.CreateProfile(ctx, req.Command())
	if err != nil {
		h.logger.InfoContext(ctx, "create profile failed",
			"request_id", requestID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "profile saved",
		"request_id", requestID,
		"profile_id", result.ID.String(),
		"mode", string(result.Mode),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toSuccessResponse(result))
}
