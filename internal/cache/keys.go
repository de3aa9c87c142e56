package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func EmbeddingStatsKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("embeddings:stats:%s", tenantID)
}
