package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrDuplicateJob is returned by CreateJob when a non-completed job with the
// same idempotency key already exists. Callers treat it as "already
// scheduled", not as a failure.
var ErrDuplicateJob = errors.New("duplicate pending job")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error

	// Job queue. CreateJob is a conditional insert: at most one non-completed
	// job may exist per idempotency key. ClaimJobs atomically locks due,
	// unlocked rows for the given worker; two concurrent callers never claim
	// the same row. CompleteJob is idempotent.
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ClaimJobs(ctx context.Context, kind string, workerID string, limit int) ([]*models.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	CompleteJobWithError(ctx context.Context, id uuid.UUID, errMsg string) error
	RescheduleJob(ctx context.Context, id uuid.UUID, runAt time.Time, errMsg string) error
	ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error)
	DeletePendingJobs(ctx context.Context, kind string, targetID uuid.UUID) (int64, error)

	// Connections and the per-feature sync-status ledger. Ledger updates are
	// merges: one feature's record is written without touching its siblings.
	GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	ListActiveConnectionsWithFeature(ctx context.Context, feature string) ([]*models.Connection, error)
	UpdateConnectionSyncStatus(ctx context.Context, id uuid.UUID, feature string, status models.FeatureSyncStatus) error
	CompleteJobAndUpdateSyncStatus(ctx context.Context, jobID uuid.UUID, connID uuid.UUID, feature string, status models.FeatureSyncStatus) error

	// Skill-store items and embedding bookkeeping.
	GetSkillItem(ctx context.Context, id uuid.UUID) (*models.SkillItem, error)
	UpdateSkillItemEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, model string) error
	UpdateSkillItemEmbeddingStatus(ctx context.Context, id uuid.UUID, status string) error
	EmbeddingStats(ctx context.Context, tenantID uuid.UUID) (*models.EmbeddingStats, error)
	ListSkillItemsForBackfill(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.SkillItem, error)
}
