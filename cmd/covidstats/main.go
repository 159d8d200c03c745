// Command covidstats ingests daily COVID-19 statistics into a local SQLite
// store and renders charts from the stored history.
//
// Usage:
//
//	covidstats [-mode single-region|all-regions|watch]
//
// The mode defaults to INGEST_MODE. All other settings come from the
// environment; see internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/covid-stats-etl/internal/adapter/covidtracking"
	"github.com/couchcryptid/covid-stats-etl/internal/adapter/healthpage"
	"github.com/couchcryptid/covid-stats-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/covid-stats-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-stats-etl/internal/adapter/sqlitestore"
	"github.com/couchcryptid/covid-stats-etl/internal/config"
	"github.com/couchcryptid/covid-stats-etl/internal/observability"
	"github.com/couchcryptid/covid-stats-etl/internal/pipeline"
	"github.com/couchcryptid/covid-stats-etl/internal/report"
)

func main() {
	mode := flag.String("mode", "", "ingestion mode: single-region, all-regions or watch (default $INGEST_MODE)")
	flag.Parse()

	cfg, err := config.LoadMode(*mode)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("covidstats failed", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlitestore.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	if err := store.Initialize(ctx); err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	console := report.NewConsole(os.Stdout)
	stages := pipeline.Stages{
		Pages:    healthpage.NewScraper(httpClient, cfg.UserAgent, logger),
		Feed:     covidtracking.NewClient(cfg.FeedURL, httpClient, cfg.UserAgent, logger),
		Store:    store,
		Renderer: report.NewChartRenderer(cfg.ChartDir, logger, metrics),
		Console:  console,
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		stages.Publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	controller := pipeline.New(stages, logger, metrics)

	switch cfg.Mode {
	case config.ModeAllRegions:
		sum, err := controller.RunAllRegions(ctx)
		console.PrintSummary(sum.Mode, sum.Stored, sum.Duplicates, sum.Failed)
		return err
	case config.ModeWatch:
		return watch(ctx, cfg, controller, store, logger, metrics)
	default:
		source, _ := cfg.Source(cfg.Region)
		_, err := controller.RunSingleRegion(ctx, source)
		return err
	}
}

// watch runs single-region ingestion on an interval and serves status
// endpoints until a shutdown signal arrives.
func watch(ctx context.Context, cfg *config.Config, controller *pipeline.Controller, store *sqlitestore.Store, logger *slog.Logger, metrics *observability.Metrics) error {
	source, _ := cfg.Source(cfg.Region)
	scheduler := pipeline.NewScheduler(func(ctx context.Context) error {
		_, err := controller.RunSingleRegion(ctx, source)
		return err
	}, cfg.WatchInterval, clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, store, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	err := scheduler.Run(ctx)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("http server shutdown error", "error", serr)
	}

	logger.Info("shutdown complete")
	return err
}
