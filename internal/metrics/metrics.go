// Package metrics exposes pipeline events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"OlxWatcher/internal/observer"
)

// Collector turns observer events into counters and histograms.
type Collector struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
	discovered    *prometheus.CounterVec
	suppressed    *prometheus.CounterVec
	degraded      prometheus.Counter
	deliveries    *prometheus.CounterVec
	categoryFails *prometheus.CounterVec
}

var _ observer.Observer = (*Collector)(nil)

// NewCollector registers every metric in reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "olxwatch_cycles_total",
			Help: "Completed scrape cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "olxwatch_cycle_duration_seconds",
			Help:    "Wall time of one scrape cycle.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400},
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "olxwatch_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished.",
		}),
		discovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "olxwatch_listings_discovered_total",
			Help: "Fresh listings found on category pages.",
		}, []string{"category"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "olxwatch_listings_suppressed_total",
			Help: "Listings skipped by the seller policy.",
		}, []string{"category"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "olxwatch_enrichment_degraded_total",
			Help: "Detail lookups that fell back to placeholders.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "olxwatch_deliveries_total",
			Help: "Delivery outcomes.",
		}, []string{"result"}),
		categoryFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "olxwatch_category_failures_total",
			Help: "Category pages that could not be scraped.",
		}, []string{"category"}),
	}

	reg.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.lastCycle,
		c.discovered,
		c.suppressed,
		c.degraded,
		c.deliveries,
		c.categoryFails,
	)

	return c
}

func (c *Collector) Observe(_ context.Context, e observer.Event) {
	switch e.Kind {
	case observer.CycleFinished:
		c.cycles.Inc()
		c.cycleDuration.Observe(e.Duration.Seconds())
		at := e.At
		if at.IsZero() {
			at = time.Now()
		}
		c.lastCycle.Set(float64(at.Unix()))
	case observer.ListingDiscovered:
		n := e.Count
		if n <= 0 {
			n = 1
		}
		c.discovered.WithLabelValues(e.Category).Add(float64(n))
	case observer.ListingSuppressed:
		c.suppressed.WithLabelValues(e.Category).Inc()
	case observer.EnrichmentDegraded:
		c.degraded.Inc()
	case observer.DeliverySent:
		c.deliveries.WithLabelValues("sent").Inc()
	case observer.DeliveryRetried:
		c.deliveries.WithLabelValues("retried").Inc()
	case observer.DeliveryFailed:
		c.deliveries.WithLabelValues("failed").Inc()
	case observer.CategoryFailed:
		c.categoryFails.WithLabelValues(e.Category).Inc()
	}
}

// Router serves /metrics and /healthz.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve runs the metrics server until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if logger != nil {
			logger.Info("metrics server listening", "addr", addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
