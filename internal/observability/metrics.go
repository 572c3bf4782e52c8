package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the planner.
type Metrics struct {
	// Remote weather service metrics.
	RemoteRequests *prometheus.CounterVec   // labels: op={check,trends,compare,export}, outcome={success,error}
	RemoteDuration *prometheus.HistogramVec // labels: op

	// Session state machine metrics.
	Submissions    *prometheus.CounterVec // labels: outcome={success,failed,invalid,superseded}
	Comparisons    *prometheus.CounterVec // labels: outcome={success,failed,invalid,superseded}
	StaleResults   *prometheus.CounterVec // labels: flow={submit,compare,picker}
	ActiveSessions prometheus.Gauge
	ReapedSessions prometheus.Counter

	// Export metrics.
	Exports *prometheus.CounterVec // labels: format={csv,json}, outcome={success,error,skipped}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all planner metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RemoteRequests,
		m.RemoteDuration,
		m.Submissions,
		m.Comparisons,
		m.StaleResults,
		m.ActiveSessions,
		m.ReapedSessions,
		m.Exports,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "remote_requests_total",
			Help:      "Remote weather service requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planner",
			Name:      "remote_request_duration_seconds",
			Help:      "Remote weather service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "submissions_total",
			Help:      "Weather check submissions by outcome.",
		}, []string{"outcome"}),
		Comparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "comparisons_total",
			Help:      "Location comparisons by outcome.",
		}, []string{"outcome"}),
		StaleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "stale_results_total",
			Help:      "Async completions discarded because a newer action superseded them.",
		}, []string{"flow"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "planner",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		ReapedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "reaped_sessions_total",
			Help:      "Sessions removed after exceeding the idle TTL.",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "exports_total",
			Help:      "File exports by format and outcome.",
		}, []string{"format", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planner",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "planner",
			Name:      "geocode_api_duration_seconds",
			Help:      "Reverse geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}
