// Package server exposes the synthesizer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snow-ghost/synth/pkg/config"
	"github.com/snow-ghost/synth/pkg/limiter"
	"github.com/snow-ghost/synth/pkg/logging"
	"github.com/snow-ghost/synth/pkg/metrics"
	"github.com/snow-ghost/synth/pkg/observability"
	"github.com/snow-ghost/synth/pkg/registry"
	"github.com/snow-ghost/synth/pkg/tracing"
	"github.com/snow-ghost/synth/worker"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Options wires a Server. Zero fields get defaults: the default
// configuration and languages, and observability that only collects
// metrics.
type Options struct {
	Config        *config.Config
	Registry      *registry.Registry
	Observability *observability.Manager
}

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	tracer   *tracing.Tracer
	metrics  *metrics.PrometheusMetrics
	gatherer prometheus.Gatherer
	limiter  *limiter.RateLimiter
	registry *registry.Registry
	ingestor *worker.Ingestor
	router   *http.ServeMux
	http     *http.Server
}

// New creates a new HTTP server
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Registry == nil {
		opts.Registry = registry.GetDefaultRegistry()
	}
	obs := opts.Observability
	if obs == nil {
		obs = observability.Nop()
	}

	s := &Server{
		config:   opts.Config,
		logger:   obs.Logger(),
		tracer:   obs.Tracer(),
		metrics:  obs.Metrics(),
		gatherer: obs.Registry(),
		limiter:  limiter.NewRateLimiter(opts.Config.Server.RateLimit),
		registry: opts.Registry,
		router:   http.NewServeMux(),
	}
	synth := &defaults{next: obs.Solver(), search: opts.Config.Search, logger: obs.Logger()}
	s.ingestor = worker.NewIngestor(synth, opts.Registry, obs.Logger().Zap())
	s.setupRoutes()
	return s
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	synth := http.Handler(s.ingestor)
	synth = s.withTimeout(synth)
	synth = s.limiter.Middleware(synth)
	s.router.Handle("/synthesize", s.withRequest("/synthesize", synth))

	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/languages", s.handleLanguages)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	cfg := s.config.Server
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.logger.Info("starting HTTP server", zap.String("addr", cfg.Addr), zap.Strings("languages", s.registry.Names()))
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running searches.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// withRequest assigns a request ID, opens a span and records metrics and
// an access log line.
func (s *Server) withRequest(route string, next http.Handler) http.Handler {
	next = s.metrics.Middleware(route, next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx, span := s.tracer.StartRequestSpan(observability.WithRequestID(r.Context(), id), id, route)
		defer span.End()
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		tracing.RecordSpanDuration(span, time.Since(start))
		s.logger.LogRequest(r.Method, route, rec.status, time.Since(start), id)
	})
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"status":    "ok",
		"service":   "synth",
		"solvers":   worker.Kinds(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{"languages": s.registry.Names()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// defaults fills the options a request leaves unset from the server's
// search configuration.
type defaults struct {
	next   worker.Synthesizer
	search config.SearchConfig
	logger *logging.Logger
}

func (d *defaults) Synthesize(ctx context.Context, req worker.Request) (*worker.Result, error) {
	d.search.Apply(&req)
	if d.logger != nil {
		d.logger.WithRequestID(observability.GetRequestIDFromContext(ctx)).Debug("synthesis request",
			zap.String("solver", string(req.Options.Solver)),
			zap.Int("beam_size", req.Options.BeamSize),
			zap.Int("budget", req.Problem.Budget),
			zap.Int("examples", len(req.Problem.Examples)),
		)
	}
	return d.next.Synthesize(ctx, req)
}
