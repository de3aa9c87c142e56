package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/jobs"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Handler executes contact-sync jobs. On success the job completion and the
// ledger update happen in one transaction; on failure only the ledger is
// touched and the dispatcher reschedules the job.
type Handler struct {
	store  store.Store
	source Source
}

// NewHandler creates a contact-sync handler.
func NewHandler(s store.Store, src Source) *Handler {
	return &Handler{store: s, source: src}
}

// Handle implements jobs.Handler for the contact-sync kind.
func (h *Handler) Handle(ctx context.Context, job *models.Job) error {
	var payload models.ContactSyncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return jobs.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	if payload.ConnectionID == uuid.Nil {
		return jobs.Permanent(errors.New("payload missing connection_id"))
	}
	if payload.Feature == "" {
		return jobs.Permanent(errors.New("payload missing feature"))
	}

	conn, err := h.store.GetConnection(ctx, payload.ConnectionID)
	if errors.Is(err, store.ErrNotFound) {
		return jobs.Permanent(fmt.Errorf("connection %s not found", payload.ConnectionID))
	}
	if err != nil {
		return fmt.Errorf("load connection: %w", err)
	}
	if !conn.Active() {
		return jobs.Permanent(fmt.Errorf("connection %s is not active", conn.ID))
	}
	if !conn.FeatureEnabled(payload.Feature) {
		return jobs.Permanent(fmt.Errorf("feature %q not enabled on connection %s", payload.Feature, conn.ID))
	}

	prev := conn.SyncStatus[payload.Feature]
	result, err := h.source.Sync(ctx, SyncRequest{
		ConnectionID: conn.ID,
		Feature:      payload.Feature,
		Cursor:       prev.Cursor,
	})
	now := time.Now().UTC()
	if err != nil {
		h.recordFailure(ctx, conn.ID, payload.Feature, prev, now, err)
		return fmt.Errorf("sync %s: %w", payload.Feature, err)
	}

	status := models.FeatureSyncStatus{
		LastSync:            &now,
		LastSuccess:         &now,
		ConsecutiveFailures: 0,
		Cursor:              result.NextCursor,
	}
	if err := h.store.CompleteJobAndUpdateSyncStatus(ctx, job.ID, conn.ID, payload.Feature, status); err != nil {
		return fmt.Errorf("record sync success: %w", err)
	}

	slog.Info("contact sync finished",
		"connection_id", conn.ID, "feature", payload.Feature, "synced", result.Synced)
	return nil
}

// recordFailure bumps the failure counters without touching last_success or
// the cursor, so a later success resumes where the last good round stopped.
func (h *Handler) recordFailure(ctx context.Context, connID uuid.UUID, feature string, prev models.FeatureSyncStatus, now time.Time, cause error) {
	msg := cause.Error()
	status := models.FeatureSyncStatus{
		LastSync:            &now,
		LastSuccess:         prev.LastSuccess,
		ConsecutiveFailures: prev.ConsecutiveFailures + 1,
		Cursor:              prev.Cursor,
		LastError:           &msg,
	}
	if err := h.store.UpdateConnectionSyncStatus(ctx, connID, feature, status); err != nil {
		slog.Error("update sync status after failure", "connection_id", connID, "feature", feature, "error", err)
	}
}
