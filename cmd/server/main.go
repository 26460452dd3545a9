package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/ad-tracker/channel-ingestion-go/internal/config"
	"github.com/ad-tracker/channel-ingestion-go/internal/db"
	"github.com/ad-tracker/channel-ingestion-go/internal/extractor"
	"github.com/ad-tracker/channel-ingestion-go/internal/handler"
	"github.com/ad-tracker/channel-ingestion-go/internal/metrics"
	"github.com/ad-tracker/channel-ingestion-go/internal/middleware"
	"github.com/ad-tracker/channel-ingestion-go/internal/repository"
	"github.com/ad-tracker/channel-ingestion-go/internal/service"
	"github.com/ad-tracker/channel-ingestion-go/internal/validation"
	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Log.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	runner := &extractor.Runner{
		Path:      cfg.Extractor.Path,
		Timeout:   cfg.Extractor.Timeout,
		WaitDelay: cfg.Extractor.WaitDelay,
		ExtraArgs: cfg.Extractor.ExtraArgs,
	}
	enricher := service.NewTranscriptEnricher(
		&http.Client{Timeout: cfg.Transcript.HTTPTimeout},
		cfg.Transcript.UserAgent,
	)
	validator := validation.New(cfg.Ingestion.DefaultMaxVideos, cfg.Ingestion.MaxVideosLimit)

	ingestionService := service.NewIngestionService(validator, runner, enricher)
	ingestionService.SetEnrichConcurrency(cfg.Transcript.Concurrency)

	checks := []handler.HealthCheck{{
		Name: "extractor",
		Check: func(context.Context) error {
			_, err := exec.LookPath(cfg.Extractor.Path)
			return err
		},
	}}

	var repo *repository.Repository
	if cfg.Database.Enabled {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer db.Close(pool)

		repo = repository.New(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		ingestionService.SetRunRecorder(repo)
		checks = append(checks, handler.HealthCheck{Name: "database", Check: repo.Ping})

		logger.Log.Info("Database connection established",
			zap.Int32("maxConns", pool.Config().MaxConns),
		)
	} else {
		logger.Log.Info("Database disabled, ingestion runs will not be recorded")
	}

	if cfg.RabbitMQ.Enabled {
		publisher, err := service.NewMessagePublisher(&cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("initialize RabbitMQ publisher: %w", err)
		}
		defer publisher.Close()

		ingestionService.SetPublisher(publisher)
		checks = append(checks, handler.HealthCheck{Name: "rabbitmq", Check: func(context.Context) error {
			if !publisher.IsHealthy() {
				return errors.New("connection closed")
			}
			return nil
		}})
	} else {
		logger.Log.Info("RabbitMQ disabled, ingestion events will not be published")
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		ingestionService.SetMetrics(metrics.New(registry))
	}

	router := newRouter(cfg, ingestionService, repo, handler.NewHealthHandler(checks...), registry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.EffectiveWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("extractor", cfg.Extractor.Path),
			zap.Duration("extractorTimeout", cfg.Extractor.Timeout),
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Log.Info("Server stopped gracefully")
		return nil
	}
}

func newRouter(
	cfg *config.Config,
	ingester handler.Ingester,
	repo *repository.Repository,
	health *handler.HealthHandler,
	registry *prometheus.Registry,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger.Log))

	router.GET("/health/live", health.LivenessProbe)
	router.GET("/health/ready", health.ReadinessProbe)

	if registry != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	if len(cfg.Server.APIKeys) > 0 {
		api.Use(middleware.NewAPIKeyAuth(cfg.Server.APIKeys, logger.Log).Handler())
	} else {
		logger.Log.Warn("No API keys configured, API endpoints are unauthenticated")
	}

	api.POST("/youtube/channel", handler.NewIngestionHandler(ingester).HandleIngest)

	if repo != nil {
		runs := handler.NewRunHandler(repo)
		api.GET("/v1/ingestions", runs.ListRuns)
		api.GET("/v1/ingestions/:id", runs.GetRun)
	}

	return router
}
