package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jamii-coop/jamii-coop/internal/app"
	"github.com/jamii-coop/jamii-coop/internal/auth"
	"github.com/jamii-coop/jamii-coop/internal/observability"
	"github.com/jamii-coop/jamii-coop/internal/payments"
	"github.com/jamii-coop/jamii-coop/internal/platform/cache"
	"github.com/jamii-coop/jamii-coop/internal/platform/db"
	"github.com/jamii-coop/jamii-coop/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(logger, authService)

	var gateway payments.Gateway = payments.NewGatewayClient(cfg.GatewayURL, cfg.GatewayAPIKey)
	if !cfg.GatewayConfigured() {
		logger.Warn("no payment gateway configured, only the simulated provider path will settle")
	}

	paymentsRepo := payments.NewRepository(pool)
	statusCache := payments.NewStatusCache(redisClient, cfg.StatusCacheTTL)
	paymentsService := payments.NewService(payments.ServiceConfig{
		Logger:         logger,
		Store:          paymentsRepo,
		Gateway:        gateway,
		Scheduler:      jobClient,
		Cache:          statusCache,
		BaseURL:        cfg.AppBaseURL,
		SimulatedDelay: cfg.SimulatedDelay,
	})
	paymentsHandler := payments.NewHandler(logger, paymentsService, auth.RequireBearer(tokens))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		AuthHandler:     authHandler,
		PaymentsHandler: paymentsHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
