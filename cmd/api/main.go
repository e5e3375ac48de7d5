package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftmart/craftmart-backend/api/routes"
	"github.com/craftmart/craftmart-backend/internal/cart"
	"github.com/craftmart/craftmart-backend/internal/catalog"
	"github.com/craftmart/craftmart-backend/internal/checkout"
	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/internal/players"
	lemonsqueezywebhook "github.com/craftmart/craftmart-backend/internal/webhooks/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/config"
	"github.com/craftmart/craftmart-backend/pkg/db"
	"github.com/craftmart/craftmart-backend/pkg/instance"
	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"github.com/craftmart/craftmart-backend/pkg/metrics"
	"github.com/craftmart/craftmart-backend/pkg/migrate"
	"github.com/craftmart/craftmart-backend/pkg/redis"
	"github.com/craftmart/craftmart-backend/pkg/sessionid"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	commerceMetrics := metrics.NewCommerceMetrics(registry)

	sessionIDs, err := sessionid.New()
	if err != nil {
		logg.Error(context.Background(), "failed to create session id generator", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)

	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, dbClient, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	var provider checkout.CheckoutProvider
	lsClient, err := lemonsqueezy.NewClient(cfg.LemonSqueezy, nil, logg)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "lemonsqueezy client disabled; checkouts will fail")
		provider = checkout.UnavailableProvider(err)
	} else {
		provider = lsClient
	}

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:         dbClient,
		Carts:      cartRepo,
		Orders:     ordersRepo,
		Players:    players.NewRepository(conn),
		Provider:   provider,
		Metrics:    commerceMetrics,
		Logger:     logg,
		SuccessURL: cfg.Storefront.SuccessURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	webhookService, err := lemonsqueezywebhook.NewService(lemonsqueezywebhook.ServiceParams{
		Orders:            ordersRepo,
		Events:            lemonsqueezywebhook.NewEventRepository(conn),
		TransactionRunner: dbClient,
		Metrics:           commerceMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lemonsqueezy webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		SessionIDs: sessionIDs,
		Catalog:    catalogService,
		Cart:       cartService,
		Checkout:   checkoutService,
		Orders:     ordersService,
		Webhook:    webhookService,
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
