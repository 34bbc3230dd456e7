// Package parallel runs several searches on the same problem at once and
// merges their states between rounds. Workers are either local goroutines
// or remote synthesis servers.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/pkg/logging"
	"github.com/snow-ghost/synth/pkg/metrics"
	"github.com/snow-ghost/synth/pkg/tracing"
	"github.com/snow-ghost/synth/worker"
	"github.com/snow-ghost/synth/worker/telemetry"
)

// DefaultRounds caps the rounds of a search that never gets correct.
const DefaultRounds = 15

// ErrRoundsExhausted is returned, along with the best merged result, when
// no worker found a correct program in the allowed rounds.
var ErrRoundsExhausted = errors.New("too many rounds, giving up")

// ErrNoState is returned when a worker reports neither a correct program
// nor a state to merge.
var ErrNoState = errors.New("no correct result and no state to merge")

// dispatch runs worker i of a round, resuming from state when it is set.
type dispatch func(ctx context.Context, round, i int, state *worker.StateDoc) (*worker.Result, error)

// rounds drives the fan-out shared by the local pool and the remote
// client.
type rounds struct {
	mode      string
	workers   int
	max       int
	beamSize  int
	logger    *logging.Logger
	tracer    *tracing.Tracer
	metrics   *metrics.PrometheusMetrics
	telemetry *telemetry.Telemetry
}

// run repeats rounds until one is correct, starting the first from
// initial when it is set. The cost of the returned result counts each
// step once: a worker's cost minus the cost already carried by the state
// it resumed from.
func (r *rounds) run(ctx context.Context, initial *worker.State, fn dispatch) (*worker.Result, error) {
	var (
		total  *worker.Result
		merged *worker.StateDoc
		err    error
	)
	if initial != nil {
		if merged, err = worker.EncodeState(initial); err != nil {
			return nil, fmt.Errorf("encode initial state: %w", err)
		}
	}
	for round := 1; ; round++ {
		results, err := r.round(ctx, round, merged, fn)
		if err != nil {
			return total, err
		}
		prior := 0
		if merged != nil {
			prior = merged.Cost
		}
		spent := 0
		for _, res := range results {
			spent += max(res.Cost-prior, 0)
		}
		res := r.merge(ctx, round, results)
		if total == nil {
			total = &worker.Result{Status: res.Status, Prog: res.Prog, Score: res.Score}
		} else if res.Score < total.Score {
			total.Status, total.Prog, total.Score = res.Status, res.Prog, res.Score
		}
		total.Cost += spent
		total.State = res.State
		if res.State != nil {
			res.State.Cost = total.Cost
		}

		if total.Solved() {
			return total, nil
		}
		if res.State == nil {
			return total, ErrNoState
		}
		if round >= r.max {
			return total, fmt.Errorf("%w after %d rounds", ErrRoundsExhausted, round)
		}
		if merged, err = worker.EncodeState(res.State); err != nil {
			return total, err
		}
	}
}

// merge folds the results of a round into the first one.
func (r *rounds) merge(ctx context.Context, round int, results []*worker.Result) *worker.Result {
	_, span := r.tracer.StartSpan(ctx, "merge", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.Int("results", len(results)),
	))
	defer span.End()

	res := results[0]
	for _, other := range results[1:] {
		if res.State != nil && other.State != nil {
			r.telemetry.Merge()
		}
		res.Merge(other, r.beamSize)
	}
	if res.State != nil {
		span.SetAttributes(attribute.Int("components", len(res.State.Extra)))
	}
	tracing.RecordSpanResult(span, string(res.Status), res.Score, res.Cost)
	return res
}

func (r *rounds) round(ctx context.Context, round int, state *worker.StateDoc, fn dispatch) ([]*worker.Result, error) {
	ctx, span := r.tracer.StartRoundSpan(ctx, round, r.workers)
	defer span.End()
	start := time.Now()

	results := make([]*worker.Result, r.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		i := i
		g.Go(func() error {
			res, err := fn(gctx, round, i, state)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	err := g.Wait()
	tracing.RecordSpanDuration(span, time.Since(start))
	r.metrics.RecordRound(r.mode)
	if err != nil {
		tracing.RecordSpanError(span, err)
		r.logger.Error("round failed", zap.Int("round", round), zap.Error(err))
		return nil, err
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Score < best.Score {
			best = res
		}
	}
	tracing.RecordSpanResult(span, string(best.Status), best.Score, best.Cost)
	tracing.RecordSpanSuccess(span)
	r.logger.LogRound(round, r.workers, string(best.Status), best.Score, best.Cost)
	return results, nil
}

// Pool runs rounds of local searches on goroutines. Every worker of a
// round resumes from its own decoded copy of the merged state. Merges
// between rounds are counted in Telemetry when it is set.
type Pool struct {
	Synth     worker.Synthesizer
	Workers   int
	Rounds    int
	Logger    *logging.Logger
	Tracer    *tracing.Tracer
	Metrics   *metrics.PrometheusMetrics
	Telemetry *telemetry.Telemetry
}

// Solve runs req on the pool until a worker gets it correct or the rounds
// run out. Worker i of round k seeds its search with req's seed plus a
// distinct offset.
func (p *Pool) Solve(ctx context.Context, req worker.Request) (*worker.Result, error) {
	if p.Synth == nil {
		return nil, errors.New("pool has no synthesizer")
	}
	if req.Lang == nil {
		return nil, errors.New("request has no language")
	}
	r := newRounds("local", p.Workers, p.Rounds, beamSize(req.Options), p.Logger, p.Tracer, p.Metrics)
	r.telemetry = p.Telemetry
	seed := baseSeed(req.Options.Seed)
	return r.run(ctx, req.Options.InitialState, func(ctx context.Context, round, i int, state *worker.StateDoc) (*worker.Result, error) {
		wreq := req
		wreq.Options.Seed = seed + int64((round-1)*r.workers+i)
		wreq.Options.InitialState = nil
		if state != nil {
			st, err := worker.DecodeState(state, req.Lang, rand.New(rand.NewSource(wreq.Options.Seed)), &ast.IDs{})
			if err != nil {
				return nil, fmt.Errorf("decode merged state: %w", err)
			}
			wreq.Options.InitialState = st
		}
		return p.Synth.Synthesize(ctx, wreq)
	})
}

func newRounds(mode string, workers, limit, beamSize int, logger *logging.Logger, tracer *tracing.Tracer, m *metrics.PrometheusMetrics) *rounds {
	if workers < 1 {
		workers = 1
	}
	if limit < 1 {
		limit = DefaultRounds
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if tracer == nil {
		tracer = tracing.Disabled()
	}
	return &rounds{
		mode:     mode,
		workers:  workers,
		max:      limit,
		beamSize: beamSize,
		logger:   logger,
		tracer:   tracer,
		metrics:  m,
	}
}

func baseSeed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

func beamSize(o worker.Options) int {
	switch {
	case o.BeamSize > 0:
		return o.BeamSize
	case o.Solver == worker.KindSMC:
		return worker.DefaultSMCBeam
	}
	return worker.DefaultHillClimbBeam
}
