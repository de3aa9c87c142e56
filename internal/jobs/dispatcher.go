package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/config"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/internal/telemetry"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

// Job status values mirrored to the cache for cheap polling.
const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusRetrying  = "retrying"

	statusTTL = 30 * time.Minute
)

// Handler executes one job. Returning nil completes the job; returning an
// error wrapped with Permanent completes it as a terminal failure; any other
// error reschedules it with backoff. Handlers must enforce their own
// external-call timeouts and never panic past the dispatcher (panics are
// recovered and treated as ordinary failures).
type Handler func(ctx context.Context, job *models.Job) error

// StatusCache mirrors job statuses so pollers avoid hitting the database.
// Implemented by cache.RedisCache; a nil StatusCache disables mirroring.
type StatusCache interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status string, ttl time.Duration) error
}

// Dispatcher is the polling worker loop. Any number of dispatchers may run
// concurrently across processes; they coordinate only through the store's
// atomic claim operation.
type Dispatcher struct {
	store    store.Store
	cache    StatusCache
	cfg      config.JobsConfig
	backoff  Backoff
	workerID string
	handlers map[string]Handler

	lastReap time.Time
}

// NewDispatcher creates a dispatcher identified by workerID. The cache may be
// nil.
func NewDispatcher(s store.Store, c StatusCache, cfg config.JobsConfig, workerID string) *Dispatcher {
	return &Dispatcher{
		store:    s,
		cache:    c,
		cfg:      cfg,
		backoff:  Backoff{Initial: cfg.BackoffInitial, Max: cfg.BackoffMax},
		workerID: workerID,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to a job kind.
func (d *Dispatcher) RegisterHandler(kind string, h Handler) {
	if kind == "" || h == nil {
		return
	}
	d.handlers[kind] = h
}

// Run polls for due jobs until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("dispatcher started", "worker_id", d.workerID, "poll_interval", d.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped", "worker_id", d.workerID)
			return ctx.Err()
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick performs a single poll cycle: reap stale claims on schedule, claim a
// batch of due jobs, and process them. Exposed for the on-demand path and
// for tests.
func (d *Dispatcher) Tick(ctx context.Context) {
	if time.Since(d.lastReap) >= time.Minute {
		d.lastReap = time.Now()
		if n, err := d.store.ReleaseStaleJobs(ctx, d.cfg.LockTimeout); err != nil {
			slog.Error("release stale jobs", "error", err)
		} else if n > 0 {
			telemetry.StaleJobsReleased.Add(float64(n))
			slog.Warn("released stale job claims", "count", n)
		}
	}

	claimed, err := d.store.ClaimJobs(ctx, "", d.workerID, d.cfg.BatchSize)
	if err != nil {
		slog.Error("claim jobs", "error", err)
		return
	}

	for _, job := range claimed {
		d.process(ctx, job)
	}
}

// process runs one claimed job through its handler and records the outcome.
func (d *Dispatcher) process(ctx context.Context, job *models.Job) {
	telemetry.JobsInFlight.Inc()
	defer telemetry.JobsInFlight.Dec()

	d.setStatus(ctx, job.ID, statusRunning)

	err := d.execute(ctx, job)
	if err == nil {
		// Handlers that pair completion with a ledger write have already
		// completed the row; CompleteJob is an idempotent no-op then.
		if err := d.store.CompleteJob(ctx, job.ID); err != nil {
			slog.Error("complete job", "job_id", job.ID, "error", err)
			return
		}
		d.setStatus(ctx, job.ID, statusCompleted)
		telemetry.JobsCompleted.WithLabelValues(job.Kind).Inc()
		slog.Info("job completed", "job_id", job.ID, "kind", job.Kind, "attempts", job.Attempts)
		return
	}

	if IsPermanent(err) {
		d.fail(ctx, job, err.Error())
		return
	}

	attempt := job.Attempts + 1
	if attempt >= d.cfg.MaxAttempts {
		d.fail(ctx, job, fmt.Sprintf("giving up after %d attempts: %v", attempt, err))
		return
	}

	runAt := time.Now().UTC().Add(d.backoff.Delay(attempt))
	if err := d.store.RescheduleJob(ctx, job.ID, runAt, err.Error()); err != nil {
		slog.Error("reschedule job", "job_id", job.ID, "error", err)
		return
	}
	d.setStatus(ctx, job.ID, statusRetrying)
	telemetry.JobsRetried.WithLabelValues(job.Kind).Inc()
	slog.Warn("job rescheduled", "job_id", job.ID, "kind", job.Kind, "attempt", attempt, "run_at", runAt, "error", err)
}

// execute invokes the handler with a per-job timeout, converting a missing
// handler or a panic into an error.
func (d *Dispatcher) execute(ctx context.Context, job *models.Job) (err error) {
	handler, ok := d.handlers[job.Kind]
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for kind %q", job.Kind))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job handler", "job_id", job.ID, "kind", job.Kind, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	jobCtx := ctx
	if d.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.cfg.HandlerTimeout)
		defer cancel()
	}

	return handler(jobCtx, job)
}

// fail completes the job as a terminal failure.
func (d *Dispatcher) fail(ctx context.Context, job *models.Job, msg string) {
	if err := d.store.CompleteJobWithError(ctx, job.ID, msg); err != nil {
		slog.Error("complete job with error", "job_id", job.ID, "error", err)
		return
	}
	d.setStatus(ctx, job.ID, statusFailed)
	telemetry.JobsFailed.WithLabelValues(job.Kind).Inc()
	slog.Error("job failed terminally", "job_id", job.ID, "kind", job.Kind, "error", msg)
}

func (d *Dispatcher) setStatus(ctx context.Context, id uuid.UUID, status string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.SetJobStatus(ctx, id, status, statusTTL); err != nil {
		slog.Debug("mirror job status", "job_id", id, "error", err)
	}
}
