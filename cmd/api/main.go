package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/phijaro/octo-oauth-demo/internal/api/http"
	"github.com/phijaro/octo-oauth-demo/internal/api/http/handlers"
	"github.com/phijaro/octo-oauth-demo/internal/api/http/views"
	"github.com/phijaro/octo-oauth-demo/internal/auth"
	"github.com/phijaro/octo-oauth-demo/internal/config"
	"github.com/phijaro/octo-oauth-demo/internal/observability"
	"github.com/phijaro/octo-oauth-demo/internal/persistence"
	"github.com/phijaro/octo-oauth-demo/internal/repository"
	"github.com/phijaro/octo-oauth-demo/internal/service"
	"github.com/phijaro/octo-oauth-demo/internal/sink"
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

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	sqlite, err := persistence.NewSQLite(cfg.Sinks.SQLiteDBPath, logger)
	if err != nil {
		logger.Fatal("failed to open sqlite", zap.Error(err))
	}
	defer sqlite.Close() //nolint:errcheck

	dependencies := map[string]handlers.Pinger{}

	var flows auth.FlowStore = auth.NewMemoryFlowStore(cfg.OAuth.FlowStateTTL())
	if redis != nil {
		flows = auth.NewRedisFlowStore(redis.Client, cfg.OAuth.FlowStateTTL())
		dependencies["redis"] = redis
	}

	var sqliteWriter, postgresWriter sink.EnrollmentWriter
	if sqlite != nil {
		sqliteWriter = repository.NewSQLiteEnrollmentRepository(sqlite.DB)
		dependencies["sqlite"] = sqlite
	}
	if pg.Enabled() {
		postgresWriter = repository.NewPostgresEnrollmentRepository(pg.PoolHandle())
		dependencies["postgres"] = pg
	}

	fanOut := sink.NewFanOut(logger, metrics,
		service.NewNotificationService(cfg.Sinks, logger, nil),
		sink.NewCSVSink(cfg.Sinks.CSVFilePath),
		sink.NewStoreSink("sqlite", sqliteWriter),
		sink.NewStoreSink("postgres", postgresWriter),
	)

	httpClient := &http.Client{Timeout: cfg.App.RequestTimeout()}
	exchanger := auth.NewExchanger(cfg.OAuth, httpClient)
	signer, err := auth.NewStateSigner(cfg.App.SecretKey, cfg.OAuth.FlowStateTTL())
	if err != nil {
		logger.Fatal("failed to init state signer", zap.Error(err))
	}

	enrollmentService := service.NewEnrollmentService(service.EnrollmentDependencies{
		Exchanger: exchanger,
		Claims:    service.NewClaimsService(cfg.OAuth.APIBaseURL, httpClient),
		Flows:     flows,
		Sinks:     fanOut,
		Logger:    logger,
		Metrics:   metrics,
	})

	renderer := views.MustRenderer()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:   logger,
		Metrics:  metrics,
		Timeout:  cfg.App.RequestTimeout(),
		Renderer: renderer,
		RetryURL: cfg.App.RoutePrefix + "/",
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Prefix: cfg.App.RoutePrefix,
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, dependencies),
		Enrollment: handlers.NewEnrollmentHandler(handlers.EnrollmentHandlerConfig{
			Prefix:        cfg.App.RoutePrefix,
			PublicBaseURL: cfg.App.PublicBaseURL,
			Authorizer:    exchanger,
			Flows:         flows,
			Signer:        signer,
			Enrollments:   enrollmentService,
			Renderer:      renderer,
			Logger:        logger,
		}),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
