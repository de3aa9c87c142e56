package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/troykelly/openclaw-projects/internal/api/middleware"
	"github.com/troykelly/openclaw-projects/internal/api/response"
	"github.com/troykelly/openclaw-projects/internal/telemetry"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	JobStatusHandler    http.HandlerFunc
	EmbeddingStats      http.HandlerFunc
	EmbeddingBackfill   http.HandlerFunc
	SyncRunHandler      http.HandlerFunc
	ReleaseStaleHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Handle("/metrics", telemetry.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.JobStatusHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Get("/api/v1/admin/embeddings/stats", orNotImplemented(deps.EmbeddingStats))
			r.Post("/api/v1/admin/embeddings/backfill", orNotImplemented(deps.EmbeddingBackfill))
			r.Post("/api/v1/admin/sync/run", orNotImplemented(deps.SyncRunHandler))
			r.Post("/api/v1/admin/jobs/release-stale", orNotImplemented(deps.ReleaseStaleHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
