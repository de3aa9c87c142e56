// Package scheduler implements the periodic batch pass that decides which
// connection features are due for a resync and enqueues jobs for them.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/troykelly/openclaw-projects/internal/config"
	"github.com/troykelly/openclaw-projects/internal/jobs"
	"github.com/troykelly/openclaw-projects/internal/store"
)

// Features the scheduler manages. Each active connection with the feature
// enabled is checked for staleness on every pass.
var managedFeatures = []string{"contacts"}

// PassResult reports one scheduler pass.
type PassResult struct {
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Scheduler scans the connection population and enqueues sync jobs for stale
// features. A pass is a pure read → decide → enqueue sequence with no other
// side effects; it is safe to run concurrently with itself and with the
// dispatchers because duplicate prevention lives entirely in the enqueuer's
// idempotency key.
type Scheduler struct {
	store    store.Store
	enqueuer *jobs.Enqueuer
	cfg      config.SyncConfig
	now      func() time.Time
}

// New creates a Scheduler.
func New(s store.Store, e *jobs.Enqueuer, cfg config.SyncConfig) *Scheduler {
	return &Scheduler{store: s, enqueuer: e, cfg: cfg, now: time.Now}
}

// Run invokes a pass every ScanInterval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "scan_interval", s.cfg.ScanInterval, "resync_interval", s.cfg.ResyncInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			result, err := s.Pass(ctx)
			if err != nil {
				slog.Error("scheduler pass", "error", err)
				continue
			}
			if result.Enqueued > 0 || result.Errors > 0 {
				slog.Info("scheduler pass finished",
					"enqueued", result.Enqueued, "skipped", result.Skipped, "errors", result.Errors)
			}
		}
	}
}

// Pass runs one scan over all managed features and returns what it did.
func (s *Scheduler) Pass(ctx context.Context) (PassResult, error) {
	var result PassResult
	for _, feature := range managedFeatures {
		r, err := s.passFeature(ctx, feature)
		if err != nil {
			return result, err
		}
		result.Enqueued += r.Enqueued
		result.Skipped += r.Skipped
		result.Errors += r.Errors
	}
	return result, nil
}

func (s *Scheduler) passFeature(ctx context.Context, feature string) (PassResult, error) {
	var result PassResult

	conns, err := s.store.ListActiveConnectionsWithFeature(ctx, feature)
	if err != nil {
		return result, fmt.Errorf("list connections for %s: %w", feature, err)
	}

	now := s.now().UTC()
	for _, conn := range conns {
		status := conn.SyncStatus[feature]
		if staleness, ok := status.Staleness(now); ok && staleness < s.cfg.ResyncInterval {
			result.Skipped++
			continue
		}

		job, err := s.enqueuer.EnqueueContactSync(ctx, conn.ID, feature)
		if err != nil {
			slog.Error("enqueue sync job", "connection_id", conn.ID, "feature", feature, "error", err)
			result.Errors++
			continue
		}
		if job == nil {
			// Already pending; the idempotency key absorbed the duplicate.
			result.Skipped++
			continue
		}
		result.Enqueued++
	}

	return result, nil
}
