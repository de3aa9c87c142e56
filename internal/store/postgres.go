package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, kind, payload, run_at, attempts, last_error, locked_at, locked_by, completed_at, idempotency_key, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Kind, &j.Payload, &j.RunAt, &j.Attempts, &j.LastError,
		&j.LockedAt, &j.LockedBy, &j.CompletedAt, &j.IdempotencyKey, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a job row. The partial unique index on idempotency_key
// makes the insert conditional: if a non-completed job with the same key
// already exists, no row is inserted and ErrDuplicateJob is returned. This is
// a single statement, so it is safe under concurrent callers.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, payload, run_at, attempts, idempotency_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
		 ON CONFLICT (idempotency_key) WHERE completed_at IS NULL DO NOTHING`,
		job.ID, job.Kind, job.Payload, job.RunAt, job.IdempotencyKey, job.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateJob
		}
		return fmt.Errorf("create job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateJob
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ClaimJobs locks up to limit due, unlocked, non-completed jobs for workerID
// and returns them. The inner SELECT uses FOR UPDATE SKIP LOCKED so that
// concurrent claimers partition the due set instead of racing over it; the
// whole claim is a single UPDATE ... RETURNING statement. An empty kind
// claims jobs of any kind.
func (s *PostgresStore) ClaimJobs(ctx context.Context, kind string, workerID string, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE jobs SET locked_at = NOW(), locked_by = $1, updated_at = NOW()
		 WHERE id IN (
		     SELECT id FROM jobs
		     WHERE completed_at IS NULL
		       AND locked_at IS NULL
		       AND run_at <= NOW()
		       AND ($2 = '' OR kind = $2)
		     ORDER BY run_at
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		workerID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CompleteJob marks the job terminally finished. Completing an already
// completed job is a no-op.
func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET completed_at = NOW(), locked_at = NULL, locked_by = NULL, updated_at = NOW()
		 WHERE id = $1 AND completed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// CompleteJobWithError marks the job terminally finished with a failure
// message. Used for permanent failures and for jobs that exhausted their
// retry budget.
func (s *PostgresStore) CompleteJobWithError(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET completed_at = NOW(), last_error = $2, locked_at = NULL, locked_by = NULL, updated_at = NOW()
		 WHERE id = $1 AND completed_at IS NULL`, id, errMsg)
	if err != nil {
		return fmt.Errorf("complete job with error: %w", err)
	}
	return nil
}

// RescheduleJob releases the claim, bumps the attempt counter, records the
// failure message, and sets the next run time.
func (s *PostgresStore) RescheduleJob(ctx context.Context, id uuid.UUID, runAt time.Time, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET locked_at = NULL, locked_by = NULL, attempts = attempts + 1,
		        last_error = $2, run_at = $3, updated_at = NOW()
		 WHERE id = $1 AND completed_at IS NULL`, id, errMsg, runAt)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}

// ReleaseStaleJobs clears claims held longer than olderThan without
// completing, so jobs orphaned by a crashed worker become claimable again.
func (s *PostgresStore) ReleaseStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET locked_at = NULL, locked_by = NULL, updated_at = NOW()
		 WHERE completed_at IS NULL AND locked_at IS NOT NULL AND locked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeletePendingJobs cancels non-completed jobs whose payload targets the
// given resource. Completed jobs are history and are never touched. An empty
// kind matches any kind.
func (s *PostgresStore) DeletePendingJobs(ctx context.Context, kind string, targetID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs
		 WHERE completed_at IS NULL
		   AND ($1 = '' OR kind = $1)
		   AND (payload->>'connection_id' = $2::text OR payload->>'item_id' = $2::text)`,
		kind, targetID)
	if err != nil {
		return 0, fmt.Errorf("delete pending jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Connections & sync-status ledger ---

func scanConnection(row pgx.Row) (*models.Connection, error) {
	var c models.Connection
	var statusJSON []byte
	err := row.Scan(&c.ID, &c.TenantID, &c.Provider, &c.Status, &c.Features,
		&statusJSON, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(statusJSON) > 0 {
		if err := json.Unmarshal(statusJSON, &c.SyncStatus); err != nil {
			return nil, fmt.Errorf("decode sync status: %w", err)
		}
	}
	if c.SyncStatus == nil {
		c.SyncStatus = models.SyncStatus{}
	}
	return &c, nil
}

const connectionColumns = `id, tenant_id, provider, status, features, sync_status, deleted_at, created_at, updated_at`

func (s *PostgresStore) GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	c, err := scanConnection(s.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListActiveConnectionsWithFeature(ctx context.Context, feature string) ([]*models.Connection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE status = 'active' AND deleted_at IS NULL AND $1 = ANY(features)
		 ORDER BY created_at`, feature)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// UpdateConnectionSyncStatus merge-updates one feature's record in the
// sync-status ledger. The jsonb || operator replaces only the named feature
// key; records stored for other features are untouched.
func (s *PostgresStore) UpdateConnectionSyncStatus(ctx context.Context, id uuid.UUID, feature string, status models.FeatureSyncStatus) error {
	return s.updateSyncStatus(ctx, s.pool, id, feature, status)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) updateSyncStatus(ctx context.Context, db execer, id uuid.UUID, feature string, status models.FeatureSyncStatus) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode sync status: %w", err)
	}
	tag, err := db.Exec(ctx,
		`UPDATE connections
		 SET sync_status = COALESCE(sync_status, '{}'::jsonb) || jsonb_build_object($2::text, $3::jsonb),
		     updated_at = NOW()
		 WHERE id = $1`, id, feature, statusJSON)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteJobAndUpdateSyncStatus completes the job and writes the ledger
// record in one transaction, so there is no window where the job is complete
// but the ledger still reports staleness.
func (s *PostgresStore) CompleteJobAndUpdateSyncStatus(ctx context.Context, jobID uuid.UUID, connID uuid.UUID, feature string, status models.FeatureSyncStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op after commit

	if _, err := tx.Exec(ctx,
		`UPDATE jobs SET completed_at = NOW(), locked_at = NULL, locked_by = NULL, updated_at = NOW()
		 WHERE id = $1 AND completed_at IS NULL`, jobID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	if err := s.updateSyncStatus(ctx, tx, connID, feature, status); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Skill items ---

const skillItemColumns = `id, tenant_id, title, summary, content, embedding, embedding_status, embedding_model, deleted_at, created_at, updated_at`

func scanSkillItem(row pgx.Row) (*models.SkillItem, error) {
	var i models.SkillItem
	err := row.Scan(&i.ID, &i.TenantID, &i.Title, &i.Summary, &i.Content, &i.Embedding,
		&i.EmbeddingStatus, &i.EmbeddingModel, &i.DeletedAt, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *PostgresStore) GetSkillItem(ctx context.Context, id uuid.UUID) (*models.SkillItem, error) {
	i, err := scanSkillItem(s.pool.QueryRow(ctx,
		`SELECT `+skillItemColumns+` FROM skill_items WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get skill item: %w", err)
	}
	return i, nil
}

func (s *PostgresStore) UpdateSkillItemEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, model string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE skill_items
		 SET embedding = $2, embedding_status = $3, embedding_model = $4, updated_at = NOW()
		 WHERE id = $1`, id, embedding, models.EmbeddingStatusComplete, model)
	if err != nil {
		return fmt.Errorf("update skill item embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateSkillItemEmbeddingStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE skill_items SET embedding_status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update skill item embedding status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EmbeddingStats counts the tenant's skill items per embedding status,
// excluding soft-deleted ones.
func (s *PostgresStore) EmbeddingStats(ctx context.Context, tenantID uuid.UUID) (*models.EmbeddingStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding_status, COUNT(*) FROM skill_items
		 WHERE tenant_id = $1 AND deleted_at IS NULL
		 GROUP BY embedding_status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("embedding stats: %w", err)
	}
	defer rows.Close()

	stats := &models.EmbeddingStats{ByStatus: map[string]int{}}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan embedding stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// ListSkillItemsForBackfill returns up to limit items with a pending or
// failed embedding, oldest first, excluding soft-deleted items.
func (s *PostgresStore) ListSkillItemsForBackfill(ctx context.Context, tenantID uuid.UUID, limit int) ([]*models.SkillItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+skillItemColumns+` FROM skill_items
		 WHERE tenant_id = $1 AND deleted_at IS NULL
		   AND embedding_status IN ($2, $3)
		 ORDER BY created_at
		 LIMIT $4`,
		tenantID, models.EmbeddingStatusPending, models.EmbeddingStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("list skill items for backfill: %w", err)
	}
	defer rows.Close()

	var items []*models.SkillItem
	for rows.Next() {
		i, err := scanSkillItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan skill item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// isDuplicateKeyError reports whether err is a Postgres unique violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
