// Package tracing sets up OpenTelemetry for the synthesizer binaries.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps an OpenTelemetry tracer and the provider behind it.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Config holds tracing configuration. An empty JaegerEndpoint disables
// export.
type Config struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	JaegerEndpoint string `yaml:"jaeger_endpoint" validate:"omitempty,url"`
	Environment    string `yaml:"environment"`
}

// NewTracer creates a tracer exporting to Jaeger and installs it as the
// global provider.
func NewTracer(config Config) (*Tracer, error) {
	if config.JaegerEndpoint == "" {
		return Disabled(), nil
	}
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}
	return newTracer(config, sdktrace.WithBatcher(exporter))
}

// NewTracerWithExporter is NewTracer with a caller-supplied exporter,
// exported synchronously.
func NewTracerWithExporter(config Config, exporter sdktrace.SpanExporter) (*Tracer, error) {
	return newTracer(config, sdktrace.WithSyncer(exporter))
}

func newTracer(config Config, export sdktrace.TracerProviderOption) (*Tracer, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(export, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Tracer{tracer: tp.Tracer(config.ServiceName), provider: tp}, nil
}

// Disabled returns a tracer that records nothing.
func Disabled() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// Tracer returns the underlying tracer, for handing to the solver.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// StartSpan starts a new span
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartRequestSpan starts a span for one served synthesis request.
func (t *Tracer) StartRequestSpan(ctx context.Context, requestID, route string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "synth.request", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("http.route", route),
	), trace.WithSpanKind(trace.SpanKindServer))
}

// StartRoundSpan starts a span for one round of a parallel search.
func (t *Tracer) StartRoundSpan(ctx context.Context, round, workers int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "synth.round", trace.WithAttributes(
		attribute.Int("round.index", round),
		attribute.Int("round.workers", workers),
	))
}

// StartRemoteSpan starts a span for a call to a remote synthesis server.
func (t *Tracer) StartRemoteSpan(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "synth.remote", trace.WithAttributes(
		attribute.String("remote.endpoint", endpoint),
	), trace.WithSpanKind(trace.SpanKindClient))
}

// RecordSpanError records an error in a span
func RecordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSpanSuccess records success in a span
func RecordSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "success")
}

// RecordSpanDuration records duration in a span
func RecordSpanDuration(span trace.Span, duration time.Duration) {
	span.SetAttributes(attribute.Float64("duration_ms", float64(duration.Nanoseconds())/1e6))
}

// RecordSpanResult records the outcome of a synthesis in a span.
func RecordSpanResult(span trace.Span, status string, score float64, cost int) {
	span.SetAttributes(
		attribute.String("synth.status", status),
		attribute.Float64("synth.score", score),
		attribute.Int("synth.cost", cost),
	)
}

// Shutdown flushes and stops the provider, if there is one.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTraceID extracts trace ID from context
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
