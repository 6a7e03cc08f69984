package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel_backend/internal/adapters"
	"leadfunnel_backend/internal/adapters/storage"
	"leadfunnel_backend/internal/email"
	leadrepo "leadfunnel_backend/internal/leads/repository"
	"leadfunnel_backend/internal/nurture"
	nurturesvc "leadfunnel_backend/internal/nurture/service"
	"leadfunnel_backend/internal/scheduler"
	"leadfunnel_backend/platform/config"
	"leadfunnel_backend/platform/db"
	"leadfunnel_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	renderer, err := email.NewRenderer()
	if err != nil {
		log.Error("failed to load email templates", "error", err)
		panic("failed to load email templates: " + err.Error())
	}

	// Worker-side dispatcher wiring (no HTTP handlers required).
	leads := leadrepo.New(pool)
	nurtureModule := nurture.NewModule(
		pool,
		adapters.NewNurtureLeadReader(leads),
		adapters.NewLeadTimelineWriter(leads),
		renderer,
		sender,
		cfg,
		log,
	)

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()
	nurtureModule.SetRunLock(nurturesvc.NewRedisRunLock(redisClient, nurturesvc.RunLockKey))

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
		} else if archive, err := adapters.NewEmailArchive(ctx, storageSvc, cfg.GetMinioBucketEmailArchive()); err != nil {
			log.Error("email archive disabled", "error", err)
		} else {
			nurtureModule.SetArchive(archive)
		}
	}

	cron, err := scheduler.NewNurtureCron(cfg, log)
	if err != nil {
		log.Error("failed to initialize nurture cron", "error", err)
		panic("failed to initialize nurture cron: " + err.Error())
	}
	go cron.Run(ctx)

	// Catch up on anything that came due while no scheduler was running.
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()
	if err := client.EnqueueNurtureDispatch(ctx, scheduler.TriggerStartup); err != nil {
		log.Warn("startup nurture dispatch not enqueued", "error", err)
	}

	worker, err := scheduler.NewWorker(cfg, nurtureModule.Dispatcher(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
