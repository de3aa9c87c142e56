// Package main is the entrypoint for the openclaw-projects API server,
// batch scheduler, and job dispatcher.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/troykelly/openclaw-projects/internal/api"
	"github.com/troykelly/openclaw-projects/internal/api/handler"
	mw "github.com/troykelly/openclaw-projects/internal/api/middleware"
	"github.com/troykelly/openclaw-projects/internal/api/response"
	"github.com/troykelly/openclaw-projects/internal/cache"
	"github.com/troykelly/openclaw-projects/internal/config"
	"github.com/troykelly/openclaw-projects/internal/contacts"
	"github.com/troykelly/openclaw-projects/internal/embeddings"
	"github.com/troykelly/openclaw-projects/internal/jobs"
	"github.com/troykelly/openclaw-projects/internal/scheduler"
	"github.com/troykelly/openclaw-projects/internal/store"
	"github.com/troykelly/openclaw-projects/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "embedding_provider", cfg.Embeddings.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create embedding provider
	provider, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		return fmt.Errorf("create embedding provider: %w", err)
	}
	slog.Info("embedding provider initialized", "provider", provider.Name(), "configured", provider.IsConfigured())

	// 6. Create store and job engine
	pgStore := store.NewPostgresStore(pool)
	enqueuer := jobs.NewEnqueuer(pgStore)

	workerID := workerIdentity()
	dispatcher := jobs.NewDispatcher(pgStore, redisCache, cfg.Jobs, workerID)
	dispatcher.RegisterHandler(models.JobKindContactSync,
		contacts.NewHandler(pgStore, contacts.NewHTTPSource(cfg.Sync.GatewayURL, cfg.Sync.GatewayTimeout)).Handle)
	dispatcher.RegisterHandler(models.JobKindEmbeddingGenerate,
		embeddings.NewHandler(pgStore, provider).Handle)

	batchScheduler := scheduler.New(pgStore, enqueuer, cfg.Sync)
	embeddingService := embeddings.NewService(pgStore, enqueuer)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       healthHandler(pgStore, redisCache),
		JobStatusHandler:    handler.NewJobStatusHandler(pgStore, redisCache),
		EmbeddingStats:      handler.NewEmbeddingStatsHandler(embeddingService, redisCache),
		EmbeddingBackfill:   handler.NewBackfillHandler(embeddingService),
		SyncRunHandler:      handler.NewSyncRunHandler(batchScheduler),
		ReleaseStaleHandler: handler.NewReleaseStaleHandler(pgStore, cfg.Jobs.LockTimeout),
	}

	router := api.NewRouter(deps)

	// 8. Start dispatcher and scheduler loops
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("dispatcher exited", "error", err)
		}
	}()
	go func() {
		if err := batchScheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("scheduler exited", "error", err)
		}
	}()

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "worker_id", workerID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout. In-flight jobs finish or are released
	// by the stale-claim reaper of another instance.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// workerIdentity builds the locked_by identity for this process.
func workerIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
