// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scanner metrics
	FastLoadsTotal       *prometheus.CounterVec
	CacheLookups         *prometheus.CounterVec
	TokensScored         prometheus.Gauge
	EnrichmentFailures   *prometheus.CounterVec
	EnrichmentsDiscarded prometheus.Counter
	EnrichmentDuration   prometheus.Histogram

	// Chain gateway metrics
	ChainCallLatency *prometheus.HistogramVec
	ChainCallErrors  *prometheus.CounterVec

	// Prediction metrics
	PredictionsCreated  *prometheus.CounterVec
	PredictionsResolved *prometheus.CounterVec
	PredictionsPending  prometheus.Gauge

	// HTTP API metrics
	HTTPRequestDuration *prometheus.HistogramVec
	StreamClients       prometheus.Gauge

	// Health metrics
	LastSuccessfulRefresh prometheus.Gauge
	LastSuccessfulSweep   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWithRegistry registers metrics on reg instead of the default registerer.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	return newMetrics(namespace, promauto.With(reg))
}

func newMetrics(namespace string, f promauto.Factory) *Metrics {
	if namespace == "" {
		namespace = "scry"
	}

	return &Metrics{
		// Scanner metrics
		FastLoadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "fast_loads_total",
			Help:      "Total number of fast loads by outcome",
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "cache_lookups_total",
			Help:      "Opportunity cache lookups by result",
		}, []string{"result"}),
		TokensScored: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tokens_scored",
			Help:      "Number of tokens in the last scored set",
		}),
		EnrichmentFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "enrichment_failures_total",
			Help:      "Failed enrichment sub-fetches by fetch name",
		}, []string{"fetch"}),
		EnrichmentsDiscarded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "enrichments_discarded_total",
			Help:      "Enrichments dropped because the selection changed",
		}),
		EnrichmentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "enrichment_duration_seconds",
			Help:      "Duration of a full enrich-and-select in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Chain gateway metrics
		ChainCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_latency_seconds",
			Help:      "Chain gateway JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ChainCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_errors_total",
			Help:      "Chain gateway call failures by method",
		}, []string{"method"}),

		// Prediction metrics
		PredictionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predictions",
			Name:      "created_total",
			Help:      "Predictions created by direction",
		}, []string{"direction"}),
		PredictionsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "predictions",
			Name:      "resolved_total",
			Help:      "Predictions resolved by result",
		}, []string{"result"}),
		PredictionsPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "predictions",
			Name:      "pending_resolution",
			Help:      "Expired predictions still awaiting a price",
		}),

		// HTTP API metrics
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "stream_clients",
			Help:      "Connected websocket stream clients",
		}),

		// Health metrics
		LastSuccessfulRefresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_refresh_timestamp",
			Help:      "Unix timestamp of last successful listing refresh",
		}),
		LastSuccessfulSweep: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last prediction settlement sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFastLoad records a fast load outcome and, when fetched, the set size.
func RecordFastLoad(outcome string, tokens int, unixSeconds int64) {
	DefaultMetrics.FastLoadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "fetched" {
		DefaultMetrics.TokensScored.Set(float64(tokens))
		DefaultMetrics.LastSuccessfulRefresh.Set(float64(unixSeconds))
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		DefaultMetrics.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	DefaultMetrics.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordEnrichmentFailure increments the failure counter for one sub-fetch.
func RecordEnrichmentFailure(fetch string) {
	DefaultMetrics.EnrichmentFailures.WithLabelValues(fetch).Inc()
}

// RecordEnrichment records a completed enrichment and whether it was discarded.
func RecordEnrichment(seconds float64, discarded bool) {
	DefaultMetrics.EnrichmentDuration.Observe(seconds)
	if discarded {
		DefaultMetrics.EnrichmentsDiscarded.Inc()
	}
}

// RecordChainCall records chain gateway call latency and failures.
func RecordChainCall(method string, seconds float64, err error) {
	DefaultMetrics.ChainCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.ChainCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordPredictionCreated increments the created counter for a direction.
func RecordPredictionCreated(direction string) {
	DefaultMetrics.PredictionsCreated.WithLabelValues(direction).Inc()
}

// RecordPredictionResolved increments the resolved counter for a result.
func RecordPredictionResolved(result string) {
	DefaultMetrics.PredictionsResolved.WithLabelValues(result).Inc()
}

// RecordSweep records a settlement sweep and how many predictions remain pending.
func RecordSweep(pending int, unixSeconds int64) {
	DefaultMetrics.PredictionsPending.Set(float64(pending))
	DefaultMetrics.LastSuccessfulSweep.Set(float64(unixSeconds))
}

// RecordHTTPRequest records an API request duration.
func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, code).Observe(seconds)
}

// UpdateStreamClients sets the connected stream client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}
