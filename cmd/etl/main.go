package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/weather-feed-etl/internal/adapter/cwa"
	httpadapter "github.com/couchcryptid/weather-feed-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-feed-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-feed-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-feed-etl/internal/config"
	"github.com/couchcryptid/weather-feed-etl/internal/observability"
	"github.com/couchcryptid/weather-feed-etl/internal/pipeline"
	"github.com/couchcryptid/weather-feed-etl/internal/scheduler"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()

	loaders := []pipeline.Loader{store}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loaders = append(loaders, writer)
		logger.Info("kafka fan-out enabled", "brokers", cfg.KafkaBrokers)
	}

	fetcher := cwa.NewClient(cfg, logger, metrics)
	p := pipeline.New(fetcher, pipeline.NewTransformer(nil), logger, metrics, loaders...)

	if cfg.OneShot() {
		return runOnce(ctx, p, logger)
	}
	return serve(ctx, cfg, p, store, logger)
}

// runOnce performs a single run and maps its outcome to an exit code.
func runOnce(ctx context.Context, p *pipeline.Pipeline, logger *slog.Logger) int {
	summary, err := p.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRecords) {
			logger.Error("no rows to insert, exiting")
		}
		return 1
	}
	logger.Info("one-shot run finished", "run_id", summary.RunID, "observations", summary.Observations, "precipitation", summary.Precipitation)
	return 0
}

// serve runs the scheduler and HTTP server until a shutdown signal arrives.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, store *sqlite.Store, logger *slog.Logger) int {
	sched, err := scheduler.New(cfg.FetchSchedule, p, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		return 1
	}

	ready := httpadapter.AllReady(store, p)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, store, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return 1
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return 0
}
