package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profilegate/internal/platform/metrics"
	dErrors "profilegate/pkg/domain-errors"
	"profilegate/pkg/platform/httputil"
	"profilegate/pkg/platform/middleware/metadata"
	"profilegate/pkg/platform/middleware/requestid"
	"profilegate/pkg/platform/middleware/requesttime"
	"profilegate/pkg/requestcontext"
)

const healthTimeout = 2 * time.Second

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Circuit is a breaker guarding an outbound dependency.
type Circuit interface {
	Name() string
	IsOpen() bool
}

// Deps are the pieces the router needs from main.
type Deps struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.HTTP
	Health   Pinger
	Circuits []Circuit
	Modules  []Registrar
}

// NewRouter wires middleware, operational endpoints and module routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.Middleware)
	r.Use(recoverer(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/health", handleHealth(d.Health, d.Circuits, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	for _, m := range d.Modules {
		m.Register(r)
	}
	return r
}

type healthResponse struct {
	Status   string            `json:"status"`
	Database string            `json:"database,omitempty"`
	Circuits map[string]string `json:"circuits,omitempty"`
}

// handleHealth answers 503 only when the database is unreachable. An open
// circuit marks the service degraded while reads keep working.
func handleHealth(db Pinger, circuits []Circuit, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		for _, c := range circuits {
			if resp.Circuits == nil {
				resp.Circuits = make(map[string]string, len(circuits))
			}
			state := "closed"
			if c.IsOpen() {
				state = "open"
				resp.Status = "degraded"
			}
			resp.Circuits[c.Name()] = state
		}
		if db == nil {
			httputil.WriteJSON(w, http.StatusOK, resp)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "health check failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

// recoverer turns a handler panic into a 500 envelope and logs the stack.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.ErrorContext(r.Context(), "panic serving request",
						"request_id", requestcontext.RequestID(r.Context()),
						"path", r.URL.Path,
						"panic", rec,
					)
					middleware.PrintPrettyStack(rec)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
