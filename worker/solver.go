// Package worker runs program searches: it owns the search state, the
// strategies that drive it and the entry point that ties them together.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/typesys"
	"github.com/snow-ghost/synth/worker/gen"
	"github.com/snow-ghost/synth/worker/mutate"
	"github.com/snow-ghost/synth/worker/telemetry"
)

var (
	// ErrUnknownSolver is returned for a strategy name that does not exist.
	ErrUnknownSolver = errors.New("unknown solver")
	// ErrNoProgram is returned when no program of the requested type fits
	// the depth bound.
	ErrNoProgram = errors.New("no program found")
	// ErrBadResult is returned when a program that evaluated cleanly before
	// fails to evaluate.
	ErrBadResult = errors.New("bad result on a validated program")
)

// Solver runs synthesis requests. The zero value is usable: it logs
// nothing, records no metrics and uses the global tracer provider.
type Solver struct {
	Logger    *zap.Logger
	Telemetry *telemetry.Telemetry
	Tracer    trace.Tracer
}

// Synthesize searches for a program solving req. The search stops when a
// program scores below the threshold or the step budget is spent; a
// context deadline is honoured between steps.
func (s *Solver) Synthesize(ctx context.Context, req Request) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := req.Options.withDefaults()
	strat, err := lookup(opts.Solver)
	if err != nil {
		return nil, err
	}
	if req.Lang == nil {
		return nil, errors.New("request has no language")
	}
	if req.Scorer == nil {
		return nil, errors.New("request has no scorer")
	}
	if len(req.Problem.Examples) == 0 {
		return nil, errors.New("request has no examples")
	}
	var out typesys.Type
	if _, spec := core.SplitSpec(req.Problem.Spec); spec != nil {
		if out, err = typesys.Parse(spec.Type); err != nil {
			return nil, fmt.Errorf("output type: %w", err)
		}
	}

	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := s.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/snow-ghost/synth/worker")
	}
	ctx, span := tracer.Start(ctx, "synthesize", trace.WithAttributes(
		attribute.String("solver", string(opts.Solver)),
		attribute.Int("bound", req.Problem.Bound),
		attribute.Int("budget", req.Problem.Budget),
	))
	defer span.End()

	rng := rand.New(rand.NewSource(opts.Seed))
	ids := &ast.IDs{}
	state := opts.InitialState
	fresh := state == nil
	if fresh {
		state = NewState(opts.BeamSize, rng)
	} else {
		state.Tracker.SetRand(rng)
		if state.BeamSize < 1 {
			state.BeamSize = opts.BeamSize
		}
		observe(state, ids)
	}
	l := state.Extend(req.Lang)
	g := &gen.Generator{Lang: l, Tracker: state.Tracker, Checker: typesys.NewChecker(), Rand: rng, IDs: ids}
	r := &run{
		ctx:       ctx,
		kind:      opts.Solver,
		lang:      l,
		ex:        core.NormalizeExamples(req.Problem.Examples),
		scorer:    req.Scorer,
		out:       out,
		threshold: req.Problem.Threshold,
		bound:     req.Problem.Bound,
		budget:    req.Problem.Budget,
		learn:     opts.Componentize,
		state:     state,
		rng:       rng,
		ids:       ids,
		gen:       g,
		mut:       mutate.NewMutator(g),
		log:       log.With(zap.String("solver", string(opts.Solver)), zap.String("state", state.ID)),
		tel:       s.Telemetry,
		tracer:    tracer,
	}

	defer func() {
		if p := recover(); p != nil {
			var re *typesys.ResolutionError
			perr, ok := p.(error)
			if !ok || !errors.As(perr, &re) {
				panic(p)
			}
			res, err = nil, perr
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.log.Error("synthesis failed", zap.Error(err))
		}
	}()

	start := time.Now()
	r.log.Info("synthesis started",
		zap.Int("beam_size", state.BeamSize),
		zap.Int("bound", r.bound),
		zap.Int("budget", r.budget),
		zap.Bool("resumed", !fresh),
	)
	res, err = strat(r)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.Float64("score", res.Score),
		attribute.Int("cost", res.Cost),
	)
	s.Telemetry.RunEnd(string(opts.Solver), string(res.Status), res.Cost, res.Score)
	r.log.Info("synthesis finished",
		zap.String("status", string(res.Status)),
		zap.Float64("score", res.Score),
		zap.Int("cost", res.Cost),
		zap.String("program", programString(res.Prog)),
		zap.Int("components", len(state.Extra)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// observe makes ids skip every identifier already used by the state.
func observe(s *State, ids *ast.IDs) {
	mark := func(n ast.Node) {
		if n == nil {
			return
		}
		ast.Walk(n, func(m ast.Node) bool {
			ids.Observe(m.M().ID)
			return true
		})
	}
	for _, c := range s.Beam {
		mark(c.Prog)
	}
	for _, p := range s.Extra {
		mark(p.Source)
	}
	mark(s.Best)
}

func programString(n ast.Node) string {
	if n == nil {
		return "NO_PROGRAM_FOUND"
	}
	return n.String()
}
