package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded on the requests counter.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the counters for one crawler run. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	SearchRequests   *prometheus.CounterVec
	SearchDuration   prometheus.Histogram
	Businesses       prometheus.Counter
	EntriesExtracted prometheus.Counter
	MalformedEntries prometheus.Counter
	PinsEmitted      prometheus.Counter
	PinsStored       prometheus.Counter
}

// New creates and registers the crawler metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pins_search_requests_total",
			Help: "Search API requests by outcome",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pins_search_request_duration_seconds",
			Help:    "Search API request latency",
			Buckets: prometheus.DefBuckets,
		}),
		Businesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pins_businesses_fetched_total",
			Help: "Businesses written to the raw dump",
		}),
		EntriesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pins_entries_extracted_total",
			Help: "Raw entries successfully extracted",
		}),
		MalformedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pins_malformed_entries_total",
			Help: "Raw entries that could not be extracted",
		}),
		PinsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pins_emitted_total",
			Help: "Pins written to the output sink",
		}),
		PinsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pins_stored_total",
			Help: "Pins written to the remote pin store",
		}),
	}
	reg.MustRegister(
		m.SearchRequests,
		m.SearchDuration,
		m.Businesses,
		m.EntriesExtracted,
		m.MalformedEntries,
		m.PinsEmitted,
		m.PinsStored,
	)
	return m
}

// ObserveSearch records one search request.
func (m *Metrics) ObserveSearch(start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.SearchRequests.WithLabelValues(outcome).Inc()
	m.SearchDuration.Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
