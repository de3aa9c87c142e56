// Package storetest provides an in-memory store.Store for unit tests of the
// job engine, scheduler, and handlers. Semantics mirror the Postgres store:
// conditional insert on the idempotency key, claim of due unlocked rows only,
// idempotent completion, and per-feature ledger merges.
package storetest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Memory is an in-memory store.Store. Safe for concurrent use. Populate the
// maps directly (or via the Add helpers) before exercising the code under
// test. Setting Err makes every method fail with it.
type Memory struct {
	mu sync.Mutex

	Jobs        map[uuid.UUID]*models.Job
	Connections map[uuid.UUID]*models.Connection
	Items       map[uuid.UUID]*models.SkillItem
	APIKeys     []*models.APIKey
	Tenant      *models.Tenant

	Err error
}

// NewMemory returns an empty Memory store with a default tenant.
func NewMemory() *Memory {
	now := time.Now().UTC()
	return &Memory{
		Jobs:        map[uuid.UUID]*models.Job{},
		Connections: map[uuid.UUID]*models.Connection{},
		Items:       map[uuid.UUID]*models.SkillItem{},
		Tenant: &models.Tenant{
			ID:        uuid.New(),
			Name:      "default",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// AddConnection stores conn and returns it.
func (m *Memory) AddConnection(conn *models.Connection) *models.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.SyncStatus == nil {
		conn.SyncStatus = models.SyncStatus{}
	}
	m.Connections[conn.ID] = conn
	return conn
}

// AddItem stores item and returns it.
func (m *Memory) AddItem(item *models.SkillItem) *models.SkillItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items[item.ID] = item
	return item
}

// PendingJobs returns all non-completed jobs, ordered by RunAt.
func (m *Memory) PendingJobs() []*models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.Jobs {
		if j.CompletedAt == nil {
			out = append(out, copyJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].RunAt.Before(out[k].RunAt) })
	return out
}

func (m *Memory) Ping(_ context.Context) error { return m.Err }

func (m *Memory) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tenant, nil
}

func (m *Memory) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []*models.APIKey
	for _, k := range m.APIKeys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return m.Err }

// --- Jobs ---

func (m *Memory) CreateJob(_ context.Context, job *models.Job) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.Jobs {
		if j.CompletedAt == nil && j.IdempotencyKey == job.IdempotencyKey {
			return store.ErrDuplicateJob
		}
	}
	m.Jobs[job.ID] = copyJob(job)
	return nil
}

func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyJob(j), nil
}

func (m *Memory) ClaimJobs(_ context.Context, kind string, workerID string, limit int) ([]*models.Job, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var due []*models.Job
	for _, j := range m.Jobs {
		if j.CompletedAt == nil && j.LockedAt == nil && !j.RunAt.After(now) &&
			(kind == "" || j.Kind == kind) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].RunAt.Before(due[k].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	var claimed []*models.Job
	for _, j := range due {
		lockedAt := now
		worker := workerID
		j.LockedAt = &lockedAt
		j.LockedBy = &worker
		j.UpdatedAt = now
		claimed = append(claimed, copyJob(j))
	}
	return claimed, nil
}

func (m *Memory) CompleteJob(_ context.Context, id uuid.UUID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeLocked(id, nil)
	return nil
}

func (m *Memory) CompleteJobWithError(_ context.Context, id uuid.UUID, errMsg string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeLocked(id, &errMsg)
	return nil
}

func (m *Memory) completeLocked(id uuid.UUID, errMsg *string) {
	j, ok := m.Jobs[id]
	if !ok || j.CompletedAt != nil {
		return
	}
	now := time.Now().UTC()
	j.CompletedAt = &now
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = now
	if errMsg != nil {
		j.LastError = errMsg
	}
}

func (m *Memory) RescheduleJob(_ context.Context, id uuid.UUID, runAt time.Time, errMsg string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.Jobs[id]
	if !ok || j.CompletedAt != nil {
		return nil
	}
	j.LockedAt = nil
	j.LockedBy = nil
	j.Attempts++
	j.LastError = &errMsg
	j.RunAt = runAt
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ReleaseStaleJobs(_ context.Context, olderThan time.Duration) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var released int64
	for _, j := range m.Jobs {
		if j.CompletedAt == nil && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.LockedAt = nil
			j.LockedBy = nil
			released++
		}
	}
	return released, nil
}

func (m *Memory) DeletePendingJobs(_ context.Context, kind string, targetID uuid.UUID) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, j := range m.Jobs {
		if j.CompletedAt != nil {
			continue
		}
		if kind != "" && j.Kind != kind {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			continue
		}
		target := targetID.String()
		if payload["connection_id"] == target || payload["item_id"] == target {
			delete(m.Jobs, id)
			removed++
		}
	}
	return removed, nil
}

// --- Connections ---

func (m *Memory) GetConnection(_ context.Context, id uuid.UUID) (*models.Connection, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Connections[id]
	if !ok || c.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	return copyConnection(c), nil
}

func (m *Memory) ListActiveConnectionsWithFeature(_ context.Context, feature string) ([]*models.Connection, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var conns []*models.Connection
	for _, c := range m.Connections {
		if c.Status == models.ConnectionStatusActive && c.DeletedAt == nil && c.FeatureEnabled(feature) {
			conns = append(conns, copyConnection(c))
		}
	}
	sort.Slice(conns, func(i, k int) bool { return conns[i].CreatedAt.Before(conns[k].CreatedAt) })
	return conns, nil
}

func (m *Memory) UpdateConnectionSyncStatus(_ context.Context, id uuid.UUID, feature string, status models.FeatureSyncStatus) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSyncStatusLocked(id, feature, status)
}

func (m *Memory) updateSyncStatusLocked(id uuid.UUID, feature string, status models.FeatureSyncStatus) error {
	c, ok := m.Connections[id]
	if !ok {
		return store.ErrNotFound
	}
	if c.SyncStatus == nil {
		c.SyncStatus = models.SyncStatus{}
	}
	c.SyncStatus[feature] = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CompleteJobAndUpdateSyncStatus(_ context.Context, jobID uuid.UUID, connID uuid.UUID, feature string, status models.FeatureSyncStatus) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateSyncStatusLocked(connID, feature, status); err != nil {
		return err
	}
	m.completeLocked(jobID, nil)
	return nil
}

// --- Skill items ---

func (m *Memory) GetSkillItem(_ context.Context, id uuid.UUID) (*models.SkillItem, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.Items[id]
	if !ok || i.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	return copyItem(i), nil
}

func (m *Memory) UpdateSkillItemEmbedding(_ context.Context, id uuid.UUID, embedding []float32, model string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.Items[id]
	if !ok {
		return store.ErrNotFound
	}
	i.Embedding = embedding
	i.EmbeddingStatus = models.EmbeddingStatusComplete
	i.EmbeddingModel = &model
	i.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) UpdateSkillItemEmbeddingStatus(_ context.Context, id uuid.UUID, status string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.Items[id]
	if !ok {
		return store.ErrNotFound
	}
	i.EmbeddingStatus = status
	i.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) EmbeddingStats(_ context.Context, tenantID uuid.UUID) (*models.EmbeddingStats, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.EmbeddingStats{ByStatus: map[string]int{}}
	for _, i := range m.Items {
		if i.TenantID != tenantID || i.DeletedAt != nil {
			continue
		}
		stats.ByStatus[i.EmbeddingStatus]++
		stats.Total++
	}
	return stats, nil
}

func (m *Memory) ListSkillItemsForBackfill(_ context.Context, tenantID uuid.UUID, limit int) ([]*models.SkillItem, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*models.SkillItem
	for _, i := range m.Items {
		if i.TenantID != tenantID || i.DeletedAt != nil {
			continue
		}
		if i.EmbeddingStatus != models.EmbeddingStatusPending && i.EmbeddingStatus != models.EmbeddingStatusFailed {
			continue
		}
		items = append(items, copyItem(i))
	}
	sort.Slice(items, func(i, k int) bool { return items[i].CreatedAt.Before(items[k].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func copyJob(j *models.Job) *models.Job {
	c := *j
	return &c
}

func copyConnection(c *models.Connection) *models.Connection {
	cp := *c
	cp.SyncStatus = models.SyncStatus{}
	for k, v := range c.SyncStatus {
		cp.SyncStatus[k] = v
	}
	return &cp
}

func copyItem(i *models.SkillItem) *models.SkillItem {
	c := *i
	return &c
}

// Compile-time check that Memory implements Store.
var _ store.Store = (*Memory)(nil)
