package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jamii-coop/jamii-coop/internal/app"
	jobmetrics "github.com/jamii-coop/jamii-coop/internal/jobs"
	"github.com/jamii-coop/jamii-coop/internal/ledger"
	"github.com/jamii-coop/jamii-coop/internal/payments"
	"github.com/jamii-coop/jamii-coop/internal/platform/cache"
	"github.com/jamii-coop/jamii-coop/internal/platform/db"
	"github.com/jamii-coop/jamii-coop/internal/reconciliation"
	"github.com/jamii-coop/jamii-coop/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	paymentsRepo := payments.NewRepository(pool)
	statusCache := payments.NewStatusCache(redisClient, cfg.StatusCacheTTL)
	paymentsService := payments.NewService(payments.ServiceConfig{
		Logger:         logger,
		Store:          paymentsRepo,
		Gateway:        payments.NewGatewayClient(cfg.GatewayURL, cfg.GatewayAPIKey),
		Scheduler:      jobClient,
		Cache:          statusCache,
		BaseURL:        cfg.AppBaseURL,
		SimulatedDelay: cfg.SimulatedDelay,
	})
	completionJob := payments.NewCompletionJob(paymentsService, logger, metrics)

	ledgerRepo := ledger.NewRepository(pool)
	rule := reconciliation.NewMissedSavingRule(ledgerRepo, cfg.PenaltyAmount)
	reconService := reconciliation.NewService(reconciliation.ServiceConfig{
		Logger:        logger,
		Ledger:        ledgerRepo,
		Rule:          rule,
		Sweeper:       paymentsService,
		PendingMaxAge: cfg.PendingMaxAge,
		Workers:       cfg.BackfillWorkers,
	})
	weeklyJob := reconciliation.NewWeeklyJob(reconService, logger, metrics)

	weeklyTask, err := jobs.NewWeeklyReconciliationTask(time.Time{})
	if err != nil {
		logger.Error("build weekly task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSimulatedComplete, Handler: completionJob.Handle},
			{Type: jobs.TaskWeeklyReconciliation, Handler: weeklyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WeeklyCronSpec, Task: weeklyTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
