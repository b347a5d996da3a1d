package services

import (
	"context"
	"fmt"
	"os"

	"yelp-pins/config"
	"yelp-pins/metrics"
	"yelp-pins/models"
	"yelp-pins/scraper/yelp"
	"yelp-pins/storage"
	"yelp-pins/utils"
)

// Fetcher runs the searches for a list of locations.
type Fetcher interface {
	FetchAll(ctx context.Context, locs []models.SearchLocation) ([]*models.SearchResponse, error)
}

// RunResult reports what a pipeline run produced.
type RunResult struct {
	RunID      string
	Businesses int
	Scan       ScanStats
	Pins       []*models.Pin
	Stored     int
}

// Pipeline ties the fetch stage (search → raw dump) to the build stage
// (raw dump → pins → output sink and optional pin store).
type Pipeline struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Metrics
	fetcher Fetcher
	store   storage.PinStore
	runID   string
}

// NewPipeline creates a pipeline. store may be nil when no remote pin store
// is configured.
func NewPipeline(cfg *config.Config, logger *utils.Logger, m *metrics.Metrics, f Fetcher, store storage.PinStore, runID string) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		logger:  logger.With("pipeline"),
		metrics: m,
		fetcher: f,
		store:   store,
		runID:   runID,
	}
}

// Run executes the stages selected by the configured mode.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: p.runID}

	if p.cfg.Mode == config.ModeAll || p.cfg.Mode == config.ModeFetch {
		n, err := p.Fetch(ctx)
		if err != nil {
			return res, err
		}
		res.Businesses = n
	}
	if p.cfg.Mode == config.ModeAll || p.cfg.Mode == config.ModeBuild {
		if err := p.Build(ctx, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Fetch searches every configured location and appends the businesses to
// the raw dump. It returns the number of businesses written.
func (p *Pipeline) Fetch(ctx context.Context) (int, error) {
	p.logger.Info("Fetching %d locations (interval %v, concurrency %d)",
		len(p.cfg.Locations), p.cfg.RequestInterval, p.cfg.MaxConcurrency)

	responses, err := p.fetcher.FetchAll(ctx, p.cfg.Locations)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	businesses := yelp.Flatten(responses, p.cfg.DedupeBusinesses)
	lines, err := yelp.DumpLines(businesses, p.cfg.RawFormat)
	if err != nil {
		return 0, err
	}

	w, err := storage.NewRawDumpWriter(p.cfg.RawDumpPath)
	if err != nil {
		return 0, err
	}
	if err := w.WriteLines(lines); err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	if p.metrics != nil {
		p.metrics.Businesses.Add(float64(len(businesses)))
	}
	p.logger.Info("Wrote %d businesses to %s", len(businesses), p.cfg.RawDumpPath)
	return len(businesses), nil
}

// Build extracts pins from the raw dump, writes them to the output sink and
// hands them to the pin store. The output sink is closed even when the scan
// fails, so a JSON array is always terminated.
func (p *Pipeline) Build(ctx context.Context, res *RunResult) (err error) {
	in, err := os.Open(p.cfg.RawDumpPath)
	if err != nil {
		return fmt.Errorf("build: open raw dump: %w", err)
	}
	defer in.Close()

	out, err := p.newPinWriter()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	emitter := NewEmitter(out, p.cfg.PinType, p.cfg.LinkedAccount, p.logger, p.metrics)
	scanner := NewEntryScanner(p.newExtractor(), p.logger, p.metrics, p.cfg.SkipErrors())

	stats, scanErr := scanner.Scan(ctx, in, emitter.Emit)
	res.Scan = stats
	res.Pins = emitter.Pins()
	if scanErr != nil {
		return fmt.Errorf("build: %w", scanErr)
	}
	p.logger.Info("Extracted %d pins from %d candidate lines (%d malformed) into %s",
		len(res.Pins), stats.Candidates, stats.Malformed, p.cfg.OutputPath)

	res.Stored, err = p.storePins(ctx, res.Pins)
	return err
}

func (p *Pipeline) newPinWriter() (storage.PinWriter, error) {
	if p.cfg.OutputFormat == config.OutputRecord {
		return storage.NewRecordWriter(p.cfg.OutputPath)
	}
	return storage.NewJSONArrayWriter(p.cfg.OutputPath, p.cfg.JSONTrailingComma)
}

func (p *Pipeline) newExtractor() Extractor {
	if p.cfg.Extractor == config.ExtractorStructured {
		return StructuredExtractor{}
	}
	return DelimiterExtractor{}
}

func (p *Pipeline) storePins(ctx context.Context, pins []*models.Pin) (int, error) {
	if p.store == nil {
		p.logger.Debug("No pin store configured, %d pins kept local", len(pins))
		return 0, nil
	}
	n, err := p.store.Store(ctx, p.runID, pins)
	if p.metrics != nil {
		p.metrics.PinsStored.Add(float64(n))
	}
	if err != nil {
		return n, err
	}
	p.logger.Info("Stored %d pins for run %s", n, p.runID)
	return n, nil
}
