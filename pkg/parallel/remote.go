package parallel

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/pkg/limiter"
	"github.com/snow-ghost/synth/pkg/logging"
	"github.com/snow-ghost/synth/pkg/metrics"
	"github.com/snow-ghost/synth/pkg/tracing"
	"github.com/snow-ghost/synth/worker"
	"github.com/snow-ghost/synth/worker/telemetry"
)

// ClientOptions configures a Client. Zero fields get defaults.
type ClientOptions struct {
	Servers    []string
	Timeout    time.Duration
	Rounds     int
	Protection limiter.Config
	Logger     *logging.Logger
	Tracer     *tracing.Tracer
	Metrics    *metrics.PrometheusMetrics
	Telemetry  *telemetry.Telemetry
}

// Client fans a problem out to remote synthesis servers, one worker per
// server, and merges what they send back between rounds.
type Client struct {
	servers    []string
	client     *http.Client
	protection *limiter.ProtectionManager
	rounds     int
	logger     *logging.Logger
	tracer     *tracing.Tracer
	metrics    *metrics.PrometheusMetrics
	telemetry  *telemetry.Telemetry
}

// NewClient creates a client for the given servers.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Disabled()
	}
	c := &Client{
		servers:   make([]string, len(opts.Servers)),
		client:    &http.Client{Timeout: opts.Timeout},
		rounds:    opts.Rounds,
		logger:    opts.Logger.Named("remote"),
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		telemetry: opts.Telemetry,
	}
	for i, s := range opts.Servers {
		c.servers[i] = strings.TrimRight(s, "/")
	}
	c.protection = limiter.NewProtectionManager(opts.Protection, func(name string, from, to gobreaker.State) {
		c.logger.LogCircuitBreaker(name, from.String(), to.String())
		c.metrics.RecordCircuitState(name, to.String())
	})
	return c
}

// Solve runs req on every server until one gets it correct or the rounds
// run out. language names req's language on the servers; results are
// decoded against req.Lang.
func (c *Client) Solve(ctx context.Context, req worker.Request, language string) (*worker.Result, error) {
	if len(c.servers) == 0 {
		return nil, errors.New("no servers configured")
	}
	if req.Lang == nil {
		return nil, errors.New("request has no language")
	}
	base := worker.RequestDoc{
		Spec:      req.Problem.Spec,
		Examples:  req.Problem.Examples,
		Threshold: req.Problem.Threshold,
		Bound:     req.Problem.Bound,
		Budget:    req.Problem.Budget,
		Config: worker.ConfigDoc{
			Language:     language,
			Solver:       req.Options.Solver,
			BeamSize:     req.Options.BeamSize,
			Componentize: req.Options.Componentize,
		},
	}
	r := newRounds("remote", len(c.servers), c.rounds, beamSize(req.Options), c.logger, c.tracer, c.metrics)
	r.telemetry = c.telemetry
	return r.run(ctx, req.Options.InitialState, func(ctx context.Context, round, i int, state *worker.StateDoc) (*worker.Result, error) {
		doc := base
		if req.Options.Seed != 0 {
			doc.Config.Seed = req.Options.Seed + int64((round-1)*len(c.servers)+i)
		}
		if state != nil {
			raw, err := json.Marshal(state)
			if err != nil {
				return nil, fmt.Errorf("encode merged state: %w", err)
			}
			doc.Config.InitialState = raw
		}
		out, err := c.Post(ctx, c.servers[i], &doc)
		if err != nil {
			return nil, err
		}
		res, err := worker.DecodeResult(out, req.Lang, rand.New(rand.NewSource(doc.Config.Seed)), &ast.IDs{})
		if err != nil {
			return nil, fmt.Errorf("decode result from %s: %w", c.servers[i], err)
		}
		return res, nil
	})
}

// Post sends one gzip compressed request to server's /synthesize and
// returns the result document. The call is throttled, retried on
// transient failures and refused while the server's breaker is open.
func (c *Client) Post(ctx context.Context, server string, doc *worker.RequestDoc) (*worker.ResultDoc, error) {
	body, err := compress(doc)
	if err != nil {
		return nil, err
	}
	ctx, span := c.tracer.StartRemoteSpan(ctx, server)
	defer span.End()

	start := time.Now()
	attempts := 0
	var lastErr error
	out, err := c.protection.ExecuteWithProtection(ctx, server, func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts > 1 {
			c.metrics.RecordRetry(server)
			c.logger.LogRetry(server, lastErr.Error(), attempts)
		}
		res, err := c.post(ctx, server, body)
		lastErr = err
		return res, err
	})
	status := "ok"
	switch {
	case errors.Is(err, limiter.ErrOpen):
		status = "open"
	case err != nil:
		status = "error"
	}
	c.metrics.RecordRemoteCall(server, status, time.Since(start))
	tracing.RecordSpanDuration(span, time.Since(start))
	if err != nil {
		tracing.RecordSpanError(span, err)
		c.logger.Warn("remote synthesis failed", zap.String("server", server), zap.Int("attempts", attempts), zap.Error(err))
		return nil, fmt.Errorf("server %s: %w", server, err)
	}
	rd := out.(*worker.ResultDoc)
	tracing.RecordSpanResult(span, string(rd.Status), rd.Score, rd.Cost)
	tracing.RecordSpanSuccess(span)
	return rd, nil
}

func (c *Client) post(ctx context.Context, server string, body []byte) (*worker.ResultDoc, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Encoding", "gzip")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, limiter.NewHTTPError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out worker.ResultDoc
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &out, nil
}

func compress(doc *worker.RequestDoc) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	return buf.Bytes(), nil
}
