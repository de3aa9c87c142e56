package embeddings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/jobs"
	"github.com/troykelly/openclaw-projects/internal/store/storetest"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

func newTestService(st *storetest.Memory) *Service {
	return NewService(st, jobs.NewEnqueuer(st))
}

func TestStats_CountsByStatus(t *testing.T) {
	st := storetest.NewMemory()
	pendingItem(st, nil, strPtr("a"), nil)
	pendingItem(st, nil, strPtr("b"), nil)
	done := pendingItem(st, nil, strPtr("c"), nil)
	st.Items[done.ID].EmbeddingStatus = models.EmbeddingStatusComplete

	stats, err := newTestService(st).Stats(context.Background(), st.Tenant.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.ByStatus[models.EmbeddingStatusPending] != 2 {
		t.Errorf("expected 2 pending, got %d", stats.ByStatus[models.EmbeddingStatusPending])
	}
	if stats.ByStatus[models.EmbeddingStatusComplete] != 1 {
		t.Errorf("expected 1 complete, got %d", stats.ByStatus[models.EmbeddingStatusComplete])
	}
}

func TestStats_ExcludesSoftDeletedItems(t *testing.T) {
	st := storetest.NewMemory()
	item := pendingItem(st, nil, strPtr("gone"), nil)
	now := time.Now().UTC()
	st.Items[item.ID].DeletedAt = &now

	stats, err := newTestService(st).Stats(context.Background(), st.Tenant.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("soft-deleted items must not be counted, got total %d", stats.Total)
	}
}

func TestBackfill_EnqueuesPendingAndFailedItems(t *testing.T) {
	st := storetest.NewMemory()
	pendingItem(st, nil, strPtr("pending item"), nil)
	failed := pendingItem(st, nil, strPtr("failed item"), nil)
	st.Items[failed.ID].EmbeddingStatus = models.EmbeddingStatusFailed
	done := pendingItem(st, nil, strPtr("done item"), nil)
	st.Items[done.ID].EmbeddingStatus = models.EmbeddingStatusComplete

	result, err := newTestService(st).Backfill(context.Background(), st.Tenant.ID, 100)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Enqueued != 2 {
		t.Errorf("expected pending and failed items enqueued (2), got %d", result.Enqueued)
	}
	if got := len(st.PendingJobs()); got != 2 {
		t.Errorf("expected 2 jobs, got %d", got)
	}
}

func TestBackfill_SkipsItemsWithNoText(t *testing.T) {
	st := storetest.NewMemory()
	pendingItem(st, strPtr("Title only"), nil, nil)
	pendingItem(st, nil, nil, nil)

	result, err := newTestService(st).Backfill(context.Background(), st.Tenant.ID, 100)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Enqueued != 0 {
		t.Errorf("expected 0 enqueued, got %d", result.Enqueued)
	}
	if result.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Skipped)
	}
	if got := len(st.PendingJobs()); got != 0 {
		t.Errorf("expected no jobs for textless items, got %d", got)
	}
}

func TestBackfill_SkipsItemsWithJobAlreadyPending(t *testing.T) {
	st := storetest.NewMemory()
	svc := newTestService(st)
	ctx := context.Background()
	pendingItem(st, nil, strPtr("item"), nil)

	first, err := svc.Backfill(ctx, st.Tenant.ID, 100)
	if err != nil {
		t.Fatalf("first backfill: %v", err)
	}
	if first.Enqueued != 1 {
		t.Fatalf("expected 1 enqueued on first run, got %d", first.Enqueued)
	}

	second, err := svc.Backfill(ctx, st.Tenant.ID, 100)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if second.Enqueued != 0 || second.Skipped != 1 {
		t.Errorf("expected second run to skip the in-flight item, got enqueued=%d skipped=%d",
			second.Enqueued, second.Skipped)
	}
	if got := len(st.PendingJobs()); got != 1 {
		t.Errorf("expected 1 job after two backfills, got %d", got)
	}
}

func TestBackfill_HonorsBatchSize(t *testing.T) {
	st := storetest.NewMemory()
	for i := 0; i < 5; i++ {
		pendingItem(st, nil, strPtr("item"), nil)
	}

	result, err := newTestService(st).Backfill(context.Background(), st.Tenant.ID, 2)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Enqueued != 2 {
		t.Errorf("expected batch of 2 enqueued, got %d", result.Enqueued)
	}
}

func TestBackfill_ScopedToTenant(t *testing.T) {
	st := storetest.NewMemory()
	pendingItem(st, nil, strPtr("mine"), nil)
	st.AddItem(&models.SkillItem{
		ID:              uuid.New(),
		TenantID:        uuid.New(), // another tenant
		Summary:         strPtr("theirs"),
		EmbeddingStatus: models.EmbeddingStatusPending,
	})

	result, err := newTestService(st).Backfill(context.Background(), st.Tenant.ID, 100)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Enqueued != 1 {
		t.Errorf("expected only the tenant's item enqueued, got %d", result.Enqueued)
	}
}
