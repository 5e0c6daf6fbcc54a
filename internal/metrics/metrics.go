package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for coldreach-web
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal            *prometheus.CounterVec

	// Remote-access layer
	BackendCallsTotal          *prometheus.CounterVec
	BackendCallDurationSeconds *prometheus.HistogramVec

	// Query cache
	CacheLookupsTotal       *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec

	// Sessions
	SessionsActive  prometheus.Gauge
	SignInsTotal    *prometheus.CounterVec
	LaunchesRunning prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldreach_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coldreach_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldreach_http_errors_total",
				Help: "Total number of HTTP responses with status >= 400",
			},
			[]string{"type"},
		),
		BackendCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldreach_backend_calls_total",
				Help: "Total number of calls to the backend service",
			},
			[]string{"operation", "outcome"},
		),
		BackendCallDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coldreach_backend_call_duration_seconds",
				Help:    "Backend call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldreach_cache_lookups_total",
				Help: "Query cache lookups by resource and result",
			},
			[]string{"resource", "result"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldreach_cache_invalidations_total",
				Help: "Query cache invalidations by resource",
			},
			[]string{"resource"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coldreach_sessions_active",
				Help: "Number of sessions known to this process",
			},
		),
		SignInsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldreach_sign_ins_total",
				Help: "Sign-in attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		LaunchesRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coldreach_launch_sequences_running",
				Help: "Number of live campaign launch sequences",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.HTTPErrorsTotal,
		m.BackendCallsTotal,
		m.BackendCallDurationSeconds,
		m.CacheLookupsTotal,
		m.CacheInvalidationsTotal,
		m.SessionsActive,
		m.SignInsTotal,
		m.LaunchesRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// ObserveBackendCall records one remote call and its outcome
func ObserveBackendCall(operation string, seconds float64, err error) {
	m := Global()
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BackendCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.BackendCallDurationSeconds.WithLabelValues(operation).Observe(seconds)
}

// IncCacheLookup records a cache hit or miss for a logical resource
func IncCacheLookup(resource string, hit bool) {
	m := Global()
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(resource, result).Inc()
}

// IncCacheInvalidation records an invalidation of a logical resource
func IncCacheInvalidation(resource string) {
	m := Global()
	if m != nil {
		m.CacheInvalidationsTotal.WithLabelValues(resource).Inc()
	}
}

// IncSignIn records a sign-in attempt
func IncSignIn(method string, err error) {
	m := Global()
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.SignInsTotal.WithLabelValues(method, outcome).Inc()
}

// AddSessions adjusts the active sessions gauge
func AddSessions(delta float64) {
	m := Global()
	if m != nil {
		m.SessionsActive.Add(delta)
	}
}

// AddLaunches adjusts the running launch sequences gauge
func AddLaunches(delta float64) {
	m := Global()
	if m != nil {
		m.LaunchesRunning.Add(delta)
	}
}
