package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel_backend/internal/adapters"
	"leadfunnel_backend/internal/adapters/storage"
	"leadfunnel_backend/internal/email"
	"leadfunnel_backend/internal/events"
	apphttp "leadfunnel_backend/internal/http"
	"leadfunnel_backend/internal/http/router"
	"leadfunnel_backend/internal/leads"
	"leadfunnel_backend/internal/notification"
	"leadfunnel_backend/internal/nurture"
	nurturesvc "leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/internal/tracking"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/db"
	"leadfunnel_backend/platform/detached"
	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Post-response work (tracking writes) runs on a bounded pool
	runner := detached.New(detached.Options{Workers: cfg.GetTrackingWorkers()}, log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}
	if !email.Available(sender) {
		log.Warn("email delivery disabled; confirmation and nurture emails will not be sent")
	}

	renderer, err := email.NewRenderer()
	if err != nil {
		log.Error("failed to load email templates", "error", err)
		panic("failed to load email templates: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	leadsModule, err := leads.NewModule(pool, eventBus, runner, val, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	leadTimeline := adapters.NewLeadTimelineWriter(leadsModule.Repository())

	nurtureModule := nurture.NewModule(
		pool,
		adapters.NewNurtureLeadReader(leadsModule.Repository()),
		leadTimeline,
		renderer,
		sender,
		cfg,
		log,
	)
	nurtureModule.RegisterHandlers(eventBus)

	closeLock := initRunLock(cfg, nurtureModule, log)
	if closeLock != nil {
		defer closeLock()
	}
	initEmailArchive(ctx, cfg, nurtureModule, log)

	trackingModule := tracking.NewModule(
		adapters.NewTrackingSequenceStore(nurtureModule.Repository()),
		leadTimeline,
		runner,
		cfg,
		log,
	)

	notificationModule := notification.New(sender, renderer, leadTimeline, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			nurtureModule,
			trackingModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Warn("detached tasks still running at shutdown", "error", err)
	}
	if err := eventBus.Wait(shutdownCtx); err != nil {
		log.Warn("event handlers still running at shutdown", "error", err)
	}
	log.Info("server stopped")
}

// initRunLock guards dispatcher runs with a Redis lock when Redis is configured.
func initRunLock(cfg config.SchedulerConfig, module *nurture.Module, log *logger.Logger) func() {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; nurture runs are not locked across instances")
		return nil
	}

	client, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil
	}

	module.SetRunLock(nurturesvc.NewRedisRunLock(client, nurturesvc.RunLockKey))
	return func() {
		_ = client.Close()
	}
}

// initEmailArchive stores a copy of each delivered nurture email when MinIO is configured.
func initEmailArchive(ctx context.Context, cfg config.StorageConfig, module *nurture.Module, log *logger.Logger) {
	if !cfg.IsMinIOEnabled() {
		log.Info("MinIO not configured; email archive disabled")
		return
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		return
	}

	var archive *adapters.EmailArchive
	if err := withRetry(ctx, log, "ensure email archive bucket", 5, 2*time.Second, func() error {
		a, err := adapters.NewEmailArchive(ctx, storageSvc, cfg.GetMinioBucketEmailArchive())
		if err != nil {
			return err
		}
		archive = a
		return nil
	}); err != nil {
		log.Error("email archive disabled", "error", err, "bucket", cfg.GetMinioBucketEmailArchive())
		return
	}

	module.SetArchive(archive)
	log.Info("email archive enabled", "bucket", cfg.GetMinioBucketEmailArchive())
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
