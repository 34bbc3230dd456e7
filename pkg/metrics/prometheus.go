// Package metrics holds the transport metrics of the synthesis server and
// the parallel client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	LatencyHistogram *prometheus.HistogramVec
	InFlight         prometheus.Gauge
	RateLimitedTotal prometheus.Counter

	// Remote synthesis calls
	RemoteCallsTotal  *prometheus.CounterVec
	RemoteLatency     *prometheus.HistogramVec
	RoundsTotal       *prometheus.CounterVec
	CircuitStateTotal *prometheus.CounterVec
	RetriesTotal      *prometheus.CounterVec
}

// NewPrometheusMetrics registers the metrics against reg, or against the
// default registerer when reg is nil.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusMetrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"path", "status"},
		),
		LatencyHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synth_http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
			},
			[]string{"path"},
		),
		InFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "synth_http_in_flight",
				Help: "Requests currently being served",
			},
		),
		RateLimitedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "synth_http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		RemoteCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_remote_calls_total",
				Help: "Calls to remote synthesis servers",
			},
			[]string{"endpoint", "status"},
		),
		RemoteLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synth_remote_latency_seconds",
				Help:    "Latency of calls to remote synthesis servers",
				Buckets: prometheus.ExponentialBuckets(0.05, 4, 8),
			},
			[]string{"endpoint"},
		),
		RoundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_parallel_rounds_total",
				Help: "Rounds of parallel search by mode",
			},
			[]string{"mode"},
		),
		CircuitStateTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_circuit_state_changes_total",
				Help: "Circuit breaker transitions by endpoint and new state",
			},
			[]string{"endpoint", "state"},
		),
		RetriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_remote_retries_total",
				Help: "Retried calls to remote synthesis servers",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordRequest records one served HTTP request.
func (m *PrometheusMetrics) RecordRequest(path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.LatencyHistogram.WithLabelValues(path).Observe(duration.Seconds())
	if status == http.StatusTooManyRequests {
		m.RateLimitedTotal.Inc()
	}
}

// RecordRemoteCall records one call to a remote server. status is "ok",
// "error" or "open".
func (m *PrometheusMetrics) RecordRemoteCall(endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteCallsTotal.WithLabelValues(endpoint, status).Inc()
	m.RemoteLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRound counts one round of a parallel search.
func (m *PrometheusMetrics) RecordRound(mode string) {
	if m == nil {
		return
	}
	m.RoundsTotal.WithLabelValues(mode).Inc()
}

// RecordCircuitState counts a breaker transition.
func (m *PrometheusMetrics) RecordCircuitState(endpoint, state string) {
	if m == nil {
		return
	}
	m.CircuitStateTotal.WithLabelValues(endpoint, state).Inc()
}

// RecordRetry counts a retried remote call.
func (m *PrometheusMetrics) RecordRetry(endpoint string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(endpoint).Inc()
}

// statusRecorder remembers the status code written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records every request passing through next under path.
func (m *PrometheusMetrics) Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordRequest(path, rec.status, time.Since(start))
	})
}
