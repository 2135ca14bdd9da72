package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elder-shield/guardian-engine/internal/analyzer"
	"github.com/elder-shield/guardian-engine/internal/behavior"
	"github.com/elder-shield/guardian-engine/internal/classifier"
	"github.com/elder-shield/guardian-engine/internal/config"
	"github.com/elder-shield/guardian-engine/internal/fetcher"
	"github.com/elder-shield/guardian-engine/internal/handlers"
	"github.com/elder-shield/guardian-engine/internal/inspector"
	"github.com/elder-shield/guardian-engine/internal/kafka"
	"github.com/elder-shield/guardian-engine/internal/malware"
	"github.com/elder-shield/guardian-engine/internal/metrics"
	"github.com/elder-shield/guardian-engine/internal/orchestrator"
	"github.com/elder-shield/guardian-engine/internal/registry"
	"github.com/elder-shield/guardian-engine/internal/reputation"
	"github.com/elder-shield/guardian-engine/internal/scheduler"
)

const (
	serviceName = "guardian-engine"
	version     = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logger := setupLogging(cfg)
	logger.Info("Starting Guardian Engine Service",
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup the behavior profile store
	profileStore, closeStore, err := buildProfileStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to set up profile store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Setup the analysis pipeline
	reputationEngine := reputation.NewEngine(logger)
	siteRegistry := registry.New(cfg.Registry)
	transportInspector := inspector.New(cfg.Inspector, logger)
	malwareScanner := malware.NewScanner(logger, reputationEngine)
	pageFetcher := fetcher.New(cfg.Fetcher, logger)
	urlAnalyzer := analyzer.New(
		cfg.Analysis,
		logger,
		siteRegistry,
		reputationEngine,
		transportInspector,
		malwareScanner,
		pageFetcher,
		buildClassifier(cfg, logger),
	)

	// Setup the duress detector
	duressDetector := behavior.NewDetector(cfg.Behavior, logger, profileStore)

	// Setup event publishing
	var publisher kafka.Publisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		writer := kafka.NewWriter(cfg.Kafka, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("Failed to close Kafka writer", "error", err)
			}
		}()
		publisher = writer
	}

	// Setup metrics and the orchestrator
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	orch := orchestrator.New(cfg, logger, urlAnalyzer, duressDetector, publisher, collector)

	// Setup scheduled maintenance
	taskScheduler := scheduler.New(logger)
	jobs := []struct {
		name, spec string
		job        scheduler.Job
	}{
		{"event-sweep", cfg.Orchestrator.SweepSchedule, orch.Sweep},
		{"daily-metrics", cfg.Orchestrator.MetricsSchedule, orch.PublishDailySummary},
		{"profile-sweep", cfg.Orchestrator.ProfileSweepSchedule, func(ctx context.Context) error {
			_, err := duressDetector.CleanupStale(ctx)
			return err
		}},
	}
	for _, j := range jobs {
		if err := taskScheduler.Register(j.name, j.spec, j.job); err != nil {
			logger.Error("Failed to register scheduled job", "job", j.name, "error", err)
			os.Exit(1)
		}
	}
	taskScheduler.Start()
	defer taskScheduler.Stop()

	// Setup HTTP routes
	httpRouter := mux.NewRouter()
	handlers.NewHTTPHandler(cfg, logger, orch).RegisterRoutes(httpRouter)
	httpRouter.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server gracefully", "error", err)
	}

	logger.Info("Service shutdown complete")
}

// buildProfileStore selects the configured profile store backing.
func buildProfileStore(ctx context.Context, cfg *config.Config) (behavior.ProfileStore, func(), error) {
	if cfg.Behavior.Store == "redis" {
		store, err := behavior.NewRedisStore(ctx, cfg.Redis, cfg.Behavior.ProfileTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return behavior.NewMemoryStore(), func() {}, nil
}

// buildClassifier prefers the remote model with the heuristic as fallback;
// without an endpoint the heuristic runs alone.
func buildClassifier(cfg *config.Config, logger *slog.Logger) classifier.Classifier {
	heuristic := classifier.NewHeuristic()
	if cfg.Classifier.Endpoint == "" {
		return heuristic
	}
	return &classifier.WithFallback{
		Primary:  classifier.NewTyphoon(cfg.Classifier, logger),
		Fallback: heuristic,
	}
}

func setupLogging(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: cfg.Debug,
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, handlerOptions)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOptions)
	}

	logger := slog.New(handler)
	logger = logger.With(
		"service", serviceName,
		"version", version,
		"environment", cfg.Environment,
	)

	slog.SetDefault(logger)
	return logger
}
