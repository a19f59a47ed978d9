// Package metrics defines the Prometheus collectors of the grocery
// pipeline. Everything is created through promauto against one registerer,
// so tests get an isolated set from NewWithRegistry(prometheus.NewRegistry()).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog calls can take minutes end to end, so the latency buckets run
// out to the request timeout.
var (
	httpBuckets    = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 30, 60, 120, 180}
	catalogBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180}
	resolveBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90, 120, 150, 180}
)

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// outcome: ok, no_results, transient, permanent
	CatalogSearchesTotal *prometheus.CounterVec
	// status: 2xx, 4xx, 429, 5xx, error, breaker_open
	CatalogAttemptsTotal *prometheus.CounterVec
	CatalogLatency       prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec

	ItemsRejectedTotal   *prometheus.CounterVec
	ResolvesTotal        *prometheus.CounterVec
	ResolveDuration      prometheus.Histogram
	OptionsPerIngredient prometheus.Histogram

	CartsAssembledTotal   prometheus.Counter
	InvalidSelectionTotal prometheus.Counter
}

// New registers with the process-wide default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: httpBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests being served.",
		}),

		CatalogSearchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Catalog searches by final outcome.",
		}, []string{"outcome"}),
		CatalogAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_attempts_total",
			Help: "Catalog HTTP attempts by status class.",
		}, []string{"status"}),
		CatalogLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_search_latency_seconds",
			Help:    "Catalog search latency including retries.",
			Buckets: catalogBuckets,
		}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Catalog searches answered from redis.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Catalog searches that went to the retailer.",
		}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),

		ItemsRejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authenticity_rejections_total",
			Help: "Catalog items dropped by the authenticity filter.",
		}, []string{"reason"}),
		ResolvesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resolves_total",
			Help: "Resolver runs by result: options, fallback, cancelled, error.",
		}, []string{"result"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolve_duration_seconds",
			Help:    "Resolver wall-clock duration.",
			Buckets: resolveBuckets,
		}),
		OptionsPerIngredient: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolver_options_per_ingredient",
			Help:    "Accepted product options per ingredient.",
			Buckets: prometheus.LinearBuckets(0, 1, 6),
		}),

		CartsAssembledTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "carts_assembled_total",
			Help: "Carts turned into affiliate URLs.",
		}),
		InvalidSelectionTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cart_invalid_selections_total",
			Help: "Cart requests rejected for an inauthentic product id.",
		}),
	}
}
