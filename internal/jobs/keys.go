package jobs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Idempotency keys are deterministic per (kind, target identity). The job
// table's partial unique index rejects a second non-completed job with the
// same key, which is the queue's only deduplication mechanism.

// ContactSyncKey returns the idempotency key for a contact-sync job.
func ContactSyncKey(connectionID uuid.UUID, feature string) string {
	return fmt.Sprintf("%s:%s:%s", models.JobKindContactSync, connectionID, feature)
}

// EmbeddingKey returns the idempotency key for an embedding-generation job.
func EmbeddingKey(itemID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", models.JobKindEmbeddingGenerate, itemID)
}
