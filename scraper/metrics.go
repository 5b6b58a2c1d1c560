package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for fetching and ingest.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	CacheHitsTotal    prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	RecipesAddedTotal prometheus.Counter
	SkippedTotal      *prometheus.CounterVec
	FailuresTotal     *prometheus.CounterVec
	CheckpointsTotal  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beerme_requests_total",
			Help: "Total HTTP requests issued by the fetcher.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beerme_request_duration_seconds",
			Help:    "HTTP request latency for page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beerme_cache_hits_total",
			Help: "Page fetches served from the document cache.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beerme_retries_total",
			Help: "Total number of retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beerme_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	added := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beerme_recipes_added_total",
			Help: "Recipes added to the collection.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beerme_recipes_skipped_total",
			Help: "Recipe URLs skipped without fetching, by reason.",
		},
		[]string{"reason"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beerme_recipe_failures_total",
			Help: "Recipes recorded in the failure ledger, by reason.",
		},
		[]string{"reason"},
	)
	checkpoints := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "beerme_checkpoints_total",
			Help: "Intermediate collection saves.",
		},
	)

	registry.MustRegister(requests, requestDuration, cacheHits, retries, errorsTotal,
		added, skipped, failures, checkpoints)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		CacheHitsTotal:    cacheHits,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		RecipesAddedTotal: added,
		SkippedTotal:      skipped,
		FailuresTotal:     failures,
		CheckpointsTotal:  checkpoints,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncCacheHit increments the document cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncAdded increments the recipes added counter.
func (m *Metrics) IncAdded() {
	if m == nil {
		return
	}
	m.RecipesAddedTotal.Inc()
}

// IncSkipped increments the skip counter for reason.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

// IncFailure increments the failure counter for reason.
func (m *Metrics) IncFailure(reason string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(reason).Inc()
}

// IncCheckpoint increments the checkpoint counter.
func (m *Metrics) IncCheckpoint() {
	if m == nil {
		return
	}
	m.CheckpointsTotal.Inc()
}
