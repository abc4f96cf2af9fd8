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

	"github.com/wiedu/wiedu-backend/api/routes"
	"github.com/wiedu/wiedu-backend/internal/lifecycle"
	"github.com/wiedu/wiedu-backend/internal/memberships"
	"github.com/wiedu/wiedu-backend/internal/requests"
	"github.com/wiedu/wiedu-backend/internal/studies"
	"github.com/wiedu/wiedu-backend/pkg/auth/session"
	"github.com/wiedu/wiedu-backend/pkg/config"
	"github.com/wiedu/wiedu-backend/pkg/db"
	"github.com/wiedu/wiedu-backend/pkg/logger"
	"github.com/wiedu/wiedu-backend/pkg/metrics"
	"github.com/wiedu/wiedu-backend/pkg/migrate"
	"github.com/wiedu/wiedu-backend/pkg/outbox"
	"github.com/wiedu/wiedu-backend/pkg/redis"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)

	services, err := buildServices(dbClient, lifecycleMetrics, logg)
	if err != nil {
		return err
	}

	addr := ":" + listenPort(cfg)
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, registry, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(serverCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(dbClient *db.Client, lifecycleMetrics *metrics.LifecycleMetrics, logg *logger.Logger) (routes.Services, error) {
	studyRepo := studies.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())
	requestRepo := requests.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	studyService, err := studies.NewService(studies.ServiceParams{
		DB:          dbClient,
		Repository:  studyRepo,
		Memberships: membershipRepo,
		Outbox:      outboxService,
		Metrics:     lifecycleMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	requestService, err := requests.NewService(requests.ServiceParams{
		DB:          dbClient,
		Repository:  requestRepo,
		Studies:     studyRepo,
		Memberships: membershipRepo,
		Outbox:      outboxService,
		Metrics:     lifecycleMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	membershipService, err := memberships.NewService(membershipRepo, studyRepo)
	if err != nil {
		return routes.Services{}, err
	}

	coordinator, err := lifecycle.NewCoordinator(lifecycle.Params{
		DB:          dbClient,
		Studies:     studyRepo,
		Memberships: membershipRepo,
		Requests:    requestRepo,
		Outbox:      outboxService,
		Metrics:     lifecycleMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Studies:     studyService,
		Requests:    requestService,
		Memberships: membershipService,
		Lifecycle:   coordinator,
	}, nil
}

func listenPort(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return cfg.App.Port
}
