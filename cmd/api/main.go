package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tablewire/pos-engine/api/routes"
	"github.com/tablewire/pos-engine/internal/catalog"
	"github.com/tablewire/pos-engine/internal/checks"
	"github.com/tablewire/pos-engine/internal/courses"
	"github.com/tablewire/pos-engine/internal/identity"
	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/internal/splits"
	"github.com/tablewire/pos-engine/internal/tables"
	"github.com/tablewire/pos-engine/internal/tabs"
	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/metrics"
	"github.com/tablewire/pos-engine/pkg/migrate"
	"github.com/tablewire/pos-engine/pkg/outbox"
	"github.com/tablewire/pos-engine/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-engine"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-engine",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if cfg.App.Env == "dev" {
		if err := migrate.AutoRun(ctx, dbClient.DB(), logg); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	ordersRepo := orders.NewRepository(dbClient.DB())
	tablesSvc := tables.NewService(tables.NewRepository(dbClient.DB()))
	outboxSvc := outbox.NewService(logg)
	store := orders.NewStore(dbClient.DB(), ordersRepo, outboxSvc, tablesSvc, cfg.Policy, logg)

	catalogGateway := catalog.NewRepo(dbClient.DB())
	authorizer := identity.NewService(dbClient.DB())

	checksSvc := checks.NewService(store, ordersRepo, catalogGateway, authorizer, engineMetrics, logg)
	splitsSvc := splits.NewService(store, ordersRepo, authorizer, engineMetrics, logg)
	tabsSvc := tabs.NewService(store, ordersRepo, tabs.NewLocalGateway(), cfg.Gateway, engineMetrics, logg)
	coursesSvc := courses.NewService(store, ordersRepo, courses.NewRedisNotifier(redisClient), engineMetrics, logg)

	publisher := outbox.NewPublisher(dbClient.DB(), redisClient, cfg.Sync.Channel, logg)
	go publisher.Run(ctx, time.Second)

	addr := ":" + cfg.App.Port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serverCtx, "starting pos engine")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			store, checksSvc, splitsSvc, tabsSvc, coursesSvc, tablesSvc,
		),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(serverCtx, "pos engine stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(serverCtx, "pos engine stopped")
}
