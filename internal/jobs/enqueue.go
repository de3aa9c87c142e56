package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/internal/telemetry"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Enqueuer creates job rows idempotently. A nil job result with a nil error
// means the work was already scheduled.
type Enqueuer struct {
	store store.Store
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(s store.Store) *Enqueuer {
	return &Enqueuer{store: s}
}

// EnqueueContactSync schedules a contact-sync job for one connection feature.
// Returns (nil, nil) when an equivalent job is already pending.
func (e *Enqueuer) EnqueueContactSync(ctx context.Context, connectionID uuid.UUID, feature string) (*models.Job, error) {
	payload := models.ContactSyncPayload{ConnectionID: connectionID, Feature: feature}
	return e.enqueue(ctx, models.JobKindContactSync, ContactSyncKey(connectionID, feature), payload)
}

// EnqueueEmbedding schedules an embedding-generation job for one skill item.
// Returns (nil, nil) when an equivalent job is already pending.
func (e *Enqueuer) EnqueueEmbedding(ctx context.Context, itemID uuid.UUID) (*models.Job, error) {
	payload := models.EmbeddingPayload{ItemID: itemID}
	return e.enqueue(ctx, models.JobKindEmbeddingGenerate, EmbeddingKey(itemID), payload)
}

func (e *Enqueuer) enqueue(ctx context.Context, kind, idempotencyKey string, payload any) (*models.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:             uuid.New(),
		Kind:           kind,
		Payload:        data,
		RunAt:          now,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateJob) {
			// Already scheduled; not an error.
			return nil, nil
		}
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}

	telemetry.JobsEnqueued.WithLabelValues(kind).Inc()
	return job, nil
}

// RemovePending cancels all non-completed jobs targeting the given resource,
// across kinds when kind is empty. Used when a resource is deleted or a
// feature disabled before its job runs. Completed jobs are preserved.
func (e *Enqueuer) RemovePending(ctx context.Context, kind string, targetID uuid.UUID) (int64, error) {
	n, err := e.store.DeletePendingJobs(ctx, kind, targetID)
	if err != nil {
		return 0, fmt.Errorf("remove pending jobs: %w", err)
	}
	return n, nil
}
