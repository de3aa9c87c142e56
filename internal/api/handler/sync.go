package handler

import (
	"context"
	"net/http"

	"github.com/troykelly/openclaw-projects/internal/api/response"
	"github.com/troykelly/openclaw-projects/internal/scheduler"
)

// SyncRunner is the interface the on-demand scheduler handler depends on.
type SyncRunner interface {
	Pass(ctx context.Context) (scheduler.PassResult, error)
}

// NewSyncRunHandler returns the handler for POST /api/v1/admin/sync/run,
// which triggers one scheduler pass immediately. Safe to call while the
// periodic pass is running; deduplication lives in the job idempotency key.
func NewSyncRunHandler(s SyncRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.Pass(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Scheduler pass failed", nil)
			return
		}
		response.JSON(w, result)
	}
}
