package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/jobs"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Handler executes embedding-generation jobs. Item state machine:
// pending → complete on success, pending → failed when the input is empty or
// the provider rejects it, pending → pending when no provider is reachable
// (the item stays eligible for a later backfill).
type Handler struct {
	store    store.Store
	provider models.EmbeddingProvider
}

// NewHandler creates an embedding-generation handler.
func NewHandler(s store.Store, p models.EmbeddingProvider) *Handler {
	return &Handler{store: s, provider: p}
}

// Handle implements jobs.Handler for the embedding-generate kind.
func (h *Handler) Handle(ctx context.Context, job *models.Job) error {
	var payload models.EmbeddingPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return jobs.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	if payload.ItemID == uuid.Nil {
		return jobs.Permanent(errors.New("payload missing item_id"))
	}

	item, err := h.store.GetSkillItem(ctx, payload.ItemID)
	if errors.Is(err, store.ErrNotFound) {
		return jobs.Permanent(fmt.Errorf("skill item %s not found", payload.ItemID))
	}
	if err != nil {
		return fmt.Errorf("load skill item: %w", err)
	}

	// Double-submission safe: a second job for an already embedded item is a
	// no-op success.
	if item.EmbeddingStatus == models.EmbeddingStatusComplete {
		return nil
	}

	text := DeriveText(item.Title, item.Summary, item.Content)
	if text == "" {
		if err := h.store.UpdateSkillItemEmbeddingStatus(ctx, item.ID, models.EmbeddingStatusFailed); err != nil {
			return fmt.Errorf("mark item failed: %w", err)
		}
		return jobs.Permanent(fmt.Errorf("skill item %s has no embeddable text", item.ID))
	}

	embedding, err := h.provider.Embed(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrEmbeddingNotConfigured):
		// Item stays pending; the next backfill with a configured provider
		// picks it up.
		return fmt.Errorf("embed item %s: %w", item.ID, err)
	case errors.Is(err, models.ErrEmbeddingRejected):
		if statusErr := h.store.UpdateSkillItemEmbeddingStatus(ctx, item.ID, models.EmbeddingStatusFailed); statusErr != nil {
			return fmt.Errorf("mark item failed: %w", statusErr)
		}
		return jobs.Permanent(fmt.Errorf("embed item %s: %w", item.ID, err))
	default:
		// Transient provider trouble; item stays pending, job retries.
		return fmt.Errorf("embed item %s: %w", item.ID, err)
	}

	if err := h.store.UpdateSkillItemEmbedding(ctx, item.ID, embedding.Vector, embedding.Model); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}

	slog.Info("embedding generated",
		"item_id", item.ID, "provider", h.provider.Name(), "model", embedding.Model, "dims", len(embedding.Vector))
	return nil
}
