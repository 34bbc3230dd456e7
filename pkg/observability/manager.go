// Package observability bundles the logger, tracer and metrics a binary
// wires into its solver, server and clients.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/snow-ghost/synth/pkg/logging"
	"github.com/snow-ghost/synth/pkg/metrics"
	"github.com/snow-ghost/synth/pkg/tracing"
	"github.com/snow-ghost/synth/worker"
	"github.com/snow-ghost/synth/worker/telemetry"
)

// Manager manages all observability components
type Manager struct {
	logger    *logging.Logger
	tracer    *tracing.Tracer
	registry  *prometheus.Registry
	metrics   *metrics.PrometheusMetrics
	telemetry *telemetry.Telemetry
}

// NewManager creates the logger and tracer from their configuration and a
// fresh metrics registry.
func NewManager(logCfg logging.Config, traceCfg tracing.Config) (*Manager, error) {
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	tracer, err := tracing.NewTracer(traceCfg)
	if err != nil {
		return nil, err
	}
	return New(logger, tracer), nil
}

// New wraps an existing logger and tracer.
func New(logger *logging.Logger, tracer *tracing.Tracer) *Manager {
	reg := prometheus.NewRegistry()
	return &Manager{
		logger:    logger,
		tracer:    tracer,
		registry:  reg,
		metrics:   metrics.NewPrometheusMetrics(reg),
		telemetry: telemetry.New(reg),
	}
}

// Nop logs and traces nothing. Metrics still go to a private registry.
func Nop() *Manager {
	return New(logging.Nop(), tracing.Disabled())
}

// Logger returns the logger instance
func (m *Manager) Logger() *logging.Logger { return m.logger }

// Tracer returns the tracer instance
func (m *Manager) Tracer() *tracing.Tracer { return m.tracer }

// Registry returns the registry every metric is registered with.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Metrics returns the transport metrics.
func (m *Manager) Metrics() *metrics.PrometheusMetrics { return m.metrics }

// Telemetry returns the search metrics.
func (m *Manager) Telemetry() *telemetry.Telemetry { return m.telemetry }

// Solver returns an in-process solver reporting through the manager.
func (m *Manager) Solver() *worker.Solver {
	return &worker.Solver{
		Logger:    m.logger.Zap(),
		Telemetry: m.telemetry,
		Tracer:    m.tracer.Tracer(),
	}
}

// Shutdown flushes the tracer and the logger.
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.tracer.Shutdown(ctx); err != nil {
		return err
	}
	// stdout and stderr cannot be synced on every platform
	_ = m.logger.Sync()
	return nil
}

type requestIDKey struct{}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestIDFromContext extracts request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}
