package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"yelp-pins/config"
	"yelp-pins/metrics"
	"yelp-pins/models"
	"yelp-pins/scraper/yelp"
	"yelp-pins/services"
	"yelp-pins/storage"
	"yelp-pins/utils"
)

func main() {
	os.Exit(run())
}

// run wires the crawler and returns the process exit code. Deferred
// cleanup happens before main exits.
func run() int {
	logger := utils.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		return 1
	}
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger.Info("=== Yelp pin crawler starting (run %s) ===", runID)
	logger.Info("Config: mode %s | %d locations | extractor %s | output %s (%s) | store %s",
		cfg.Mode, len(cfg.Locations), cfg.Extractor, cfg.OutputPath, cfg.OutputFormat, cfg.PinStore)

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("Metrics server stopped: %v", err)
			}
		}()
		logger.Info("Metrics on http://%s/metrics", cfg.MetricsAddr)
	}

	var store storage.PinStore
	if cfg.Mode != config.ModeFetch {
		store, err = openPinStore(ctx, cfg)
		if err != nil {
			logger.Error("Failed to open pin store: %v", err)
			if cfg.PinStore == config.StorePostgres {
				logger.Error("Make sure Docker is running: docker compose up -d")
			}
			return 1
		}
		if store != nil {
			defer store.Close()
		}
	}

	client := yelp.New(cfg, logger, m)
	pipeline := services.NewPipeline(cfg, logger, m, client, store, runID)

	res, err := pipeline.Run(ctx)
	if err != nil {
		logFailure(logger, err)
	}

	if cfg.Mode != config.ModeFetch {
		summary := services.NewSummaryService(logger)
		summary.Print(os.Stdout, summary.Generate(res.Pins, res.Scan.Malformed))
		fmt.Printf("  Done. Raw dump → %s | Pins → %s\n\n", cfg.RawDumpPath, cfg.OutputPath)
	}
	if err != nil {
		return 1
	}
	return 0
}

func openPinStore(ctx context.Context, cfg *config.Config) (storage.PinStore, error) {
	switch cfg.PinStore {
	case config.StorePostgres:
		pw, err := storage.NewPostgresWriter(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		return pw, nil
	case config.StoreElastic:
		ew, err := storage.NewElasticWriter(ctx, cfg.ElasticURL, cfg.ElasticIndex)
		if err != nil {
			return nil, err
		}
		return ew, nil
	}
	return nil, nil
}

func logFailure(logger *utils.Logger, err error) {
	var fe *models.FetchError
	var me *models.MalformedEntryError
	var se *models.SinkWriteError
	switch {
	case errors.As(err, &fe):
		logger.Error("Search failed: %v", err)
	case errors.As(err, &me):
		logger.Error("Malformed entry (set ERROR_POLICY=skip or EXTRACTOR=structured): %v", err)
	case errors.As(err, &se):
		logger.Error("Could not write pins: %v", err)
	case errors.Is(err, context.Canceled):
		logger.Warn("Interrupted")
	default:
		logger.Error("Run failed: %v", err)
	}
}
