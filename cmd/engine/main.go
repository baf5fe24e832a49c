package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/dispatch"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/scheduler"
	"github.com/spec-kit/ticket-engine/internal/worker"
	"github.com/spec-kit/ticket-engine/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	objects, err := persistence.NewObjectStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to connect object store", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	var sched *scheduler.Scheduler
	var scanWorker *worker.ScanWorker
	pool := pg.PoolHandle()
	if pool != nil {
		store := persistence.NewStore(pool)
		dispatcher := dispatch.NewRedisDispatcher(redis.Client, cfg.Dispatch.QueueKey, logger)
		engine := workflow.NewEngine(store, nil, dispatcher, logger).WithMetrics(metrics)

		sched = scheduler.New(engine, cfg.Scheduler, logger, metrics)
		sched.Start(ctx)

		var fetcher worker.ObjectFetcher
		if objects != nil {
			fetcher = objects
		}
		attachments := repository.NewAttachmentRepository(pool)
		scanWorker = worker.NewScanWorker(redis.Client, cfg.Scan, attachments, fetcher, logger, metrics)
		scanWorker.Start(ctx)
	} else {
		logger.Warn("no database configured; periodic passes and scan worker disabled")
	}

	app := fiber.New()
	registerHealthRoutes(app, &healthHandler{
		serviceName: cfg.App.Name,
		version:     cfg.App.Version,
		postgres:    pg,
		redis:       redis,
		metrics:     metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if sched != nil {
		sched.Stop()
	}
	if scanWorker != nil {
		scanWorker.Stop()
	}
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
