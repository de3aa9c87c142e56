package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/api/middleware"
	"github.com/troykelly/openclaw-projects/internal/api/response"
	"github.com/troykelly/openclaw-projects/internal/cache"
	"github.com/troykelly/openclaw-projects/internal/embeddings"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

const statsCacheTTL = 30 * time.Second

// EmbeddingAdmin is the interface the embedding admin handlers depend on.
type EmbeddingAdmin interface {
	Stats(ctx context.Context, tenantID uuid.UUID) (*models.EmbeddingStats, error)
	Backfill(ctx context.Context, tenantID uuid.UUID, batchSize int) (*embeddings.BackfillResult, error)
}

// NewEmbeddingStatsHandler returns the handler for
// GET /api/v1/admin/embeddings/stats. Results are cached briefly; the cache
// may be nil.
func NewEmbeddingStatsHandler(svc EmbeddingAdmin, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := middleware.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		key := cache.EmbeddingStatsKey(tenantID)
		if c != nil {
			if cached, found, err := c.Get(r.Context(), key); err == nil && found {
				var stats models.EmbeddingStats
				if json.Unmarshal(cached, &stats) == nil {
					response.JSON(w, stats)
					return
				}
			}
		}

		stats, err := svc.Stats(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load embedding stats", nil)
			return
		}

		if c != nil {
			if data, err := json.Marshal(stats); err == nil {
				_ = c.Set(r.Context(), key, data, statsCacheTTL)
			}
		}

		response.JSON(w, stats)
	}
}

// NewBackfillHandler returns the handler for
// POST /api/v1/admin/embeddings/backfill.
func NewBackfillHandler(svc EmbeddingAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := middleware.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			BatchSize int `json:"batch_size"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
		}
		if req.BatchSize <= 0 {
			req.BatchSize = 100
		}
		if req.BatchSize > 1000 {
			req.BatchSize = 1000
		}

		result, err := svc.Backfill(r.Context(), tenantID, req.BatchSize)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Backfill failed", nil)
			return
		}

		response.JSON(w, result)
	}
}
