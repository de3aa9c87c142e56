package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/api/response"
	"github.com/troykelly/openclaw-projects/internal/cache"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// JobReader is the store surface the job handlers depend on.
type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewJobStatusHandler returns the handler for GET /api/v1/jobs/{jobID}.
// The cached status mirror is consulted first; the cache may be nil.
func NewJobStatusHandler(s JobReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job ID", nil)
			return
		}

		if c != nil {
			if status, found, err := c.GetJobStatus(r.Context(), jobID); err == nil && found {
				response.JSON(w, map[string]any{"id": jobID, "status": status})
				return
			}
		}

		job, err := s.GetJob(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewReleaseStaleHandler returns the handler for
// POST /api/v1/admin/jobs/release-stale, the manual escape hatch for claims
// orphaned by a crashed worker.
func NewReleaseStaleHandler(s JobReader, lockTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		released, err := s.ReleaseStaleJobs(r.Context(), lockTimeout)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to release stale jobs", nil)
			return
		}
		response.JSON(w, map[string]int64{"released": released})
	}
}
