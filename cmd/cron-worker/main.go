package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftmart/craftmart-backend/internal/catalog"
	"github.com/craftmart/craftmart-backend/internal/cron"
	"github.com/craftmart/craftmart-backend/internal/fulfillment"
	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/config"
	"github.com/craftmart/craftmart-backend/pkg/db"
	"github.com/craftmart/craftmart-backend/pkg/instance"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"github.com/craftmart/craftmart-backend/pkg/metrics"
	"github.com/craftmart/craftmart-backend/pkg/migrate"
	"github.com/craftmart/craftmart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	commerceMetrics := metrics.NewCommerceMetrics(prometheus.DefaultRegisterer)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockScope(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	ordersRepo := orders.NewRepository(conn)

	pendingJob, err := cron.NewPendingCheckoutJob(cron.PendingCheckoutJobParams{
		Logger:       logg,
		DB:           dbClient,
		Orders:       ordersRepo,
		PendingAfter: cfg.Reconcile.PendingAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending checkout job", err)
		os.Exit(1)
	}

	dispatcher, err := fulfillment.NewDispatcher(fulfillment.DispatcherParams{
		Orders:      ordersRepo,
		Products:    catalog.NewRepository(conn),
		Publisher:   redisClient,
		Tx:          dbClient,
		Metrics:     commerceMetrics,
		Logger:      logg,
		Stream:      cfg.Reconcile.FulfillmentStream,
		BatchSize:   cfg.Reconcile.FulfillmentBatchSize,
		MaxAttempts: cfg.Reconcile.FulfillmentMaxAttempts,
		AckTimeout:  cfg.Reconcile.FulfillmentAckTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment dispatcher", err)
		os.Exit(1)
	}
	fulfillmentJob, err := cron.NewFulfillmentJob(dispatcher)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(pendingJob, fulfillmentJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Reconcile.Interval.String(),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
