package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/jobs"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// BackfillResult reports one administrative backfill run.
type BackfillResult struct {
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
}

// Service exposes embedding progress stats and the administrative backfill
// that re-enqueues items missing a completed embedding.
type Service struct {
	store    store.Store
	enqueuer *jobs.Enqueuer
}

// NewService creates an embedding Service.
func NewService(s store.Store, e *jobs.Enqueuer) *Service {
	return &Service{store: s, enqueuer: e}
}

// Stats returns embedding counts per status for the tenant, excluding
// soft-deleted items.
func (s *Service) Stats(ctx context.Context, tenantID uuid.UUID) (*models.EmbeddingStats, error) {
	stats, err := s.store.EmbeddingStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("embedding stats: %w", err)
	}
	return stats, nil
}

// Backfill scans up to batchSize pending/failed items (soft-deleted excluded)
// and enqueues embedding jobs for those with embeddable text. Items with no
// text, and items whose job is already pending, count as skipped.
func (s *Service) Backfill(ctx context.Context, tenantID uuid.UUID, batchSize int) (*BackfillResult, error) {
	items, err := s.store.ListSkillItemsForBackfill(ctx, tenantID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list items for backfill: %w", err)
	}

	result := &BackfillResult{}
	for _, item := range items {
		if DeriveText(item.Title, item.Summary, item.Content) == "" {
			result.Skipped++
			continue
		}

		job, err := s.enqueuer.EnqueueEmbedding(ctx, item.ID)
		if err != nil {
			return result, fmt.Errorf("enqueue embedding for %s: %w", item.ID, err)
		}
		if job == nil {
			result.Skipped++
			continue
		}
		result.Enqueued++
	}

	slog.Info("embedding backfill finished",
		"tenant_id", tenantID, "enqueued", result.Enqueued, "skipped", result.Skipped)
	return result, nil
}
