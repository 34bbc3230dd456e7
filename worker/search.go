package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/stats"
	"github.com/snow-ghost/synth/typesys"
	"github.com/snow-ghost/synth/worker/gen"
	"github.com/snow-ghost/synth/worker/mutate"
	"github.com/snow-ghost/synth/worker/telemetry"
)

// CacheResetInterval is how many steps a cached weight table may live.
const CacheResetInterval = 100

// run is the exclusive context of one search.
type run struct {
	ctx    context.Context
	kind   Kind
	lang   *lang.Language
	ex     []core.Example
	scorer core.Scorer
	out    typesys.Type

	threshold float64
	bound     int
	budget    int
	learn     bool

	state *State
	rng   *rand.Rand
	ids   *ast.IDs
	gen   *gen.Generator
	mut   *mutate.Mutator

	log    *zap.Logger
	tel    *telemetry.Telemetry
	tracer trace.Tracer
}

// random builds a fresh program of the output type.
func (r *run) random() (ast.Node, error) {
	prog, err := r.gen.Generate(r.out, r.bound)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProgram, err)
	}
	return prog, nil
}

// mutate returns a variant of prog, or prog itself when mutation gave up.
func (r *run) mutate(prog ast.Node) (ast.Node, bool) {
	out, err := r.mut.Mutate(prog, r.bound)
	if err != nil {
		if !errors.Is(err, mutate.ErrUnchanged) {
			r.log.Debug("mutation failed", zap.Error(err))
		}
		return prog, false
	}
	return out, true
}

// test scores prog and credits the tracker. A program that cannot be
// evaluated scores 1 unless it was validated before, which is a defect.
func (r *run) test(prog ast.Node, origin string, validated bool) (float64, error) {
	r.tel.Candidate(string(r.kind), origin)
	outputs := make([]core.Value, len(r.ex))
	for i, e := range r.ex {
		v, err := ast.Eval(prog, e.In)
		if err != nil {
			if validated {
				return 0, fmt.Errorf("%w: %s: %v", ErrBadResult, prog, err)
			}
			return 1, nil
		}
		outputs[i] = v
	}
	score, err := core.CheckScore(r.scorer.Score(r.ex, outputs))
	if err != nil {
		return 0, fmt.Errorf("program %s: %w", prog, err)
	}
	r.state.Tracker.ScoreTree(prog, stats.Reward(score))
	return score, nil
}

// populate fills a fresh beam with random programs and returns the steps
// spent.
func (r *run) populate() (int, error) {
	before := len(r.state.Beam)
	err := r.state.Populate(func(int) (Candidate, error) {
		prog, err := r.random()
		if err != nil {
			return Candidate{}, err
		}
		score, err := r.test(prog, "random", false)
		if err != nil {
			return Candidate{}, err
		}
		return Candidate{Prog: prog, Score: score}, nil
	})
	return len(r.state.Beam) - before, err
}

// componentize runs library learning on the beam.
func (r *run) componentize() {
	_, span := r.tracer.Start(r.ctx, "componentize")
	defer span.End()
	comp, ok := r.state.Componentize(r.lang, r.ids)
	if !ok {
		r.log.Debug("no component found")
		return
	}
	span.SetAttributes(
		attribute.String("component", comp.Prim.Name),
		attribute.Int("arity", comp.Prim.Arity()),
	)
	r.tel.Component()
	r.log.Info("componentized",
		zap.String("component", comp.Prim.Name),
		zap.Int("arity", comp.Prim.Arity()),
		zap.Stringer("source", comp.Prim.Source),
		zap.Int("instances", comp.Instances),
	)
}

// resetCache drops cached weights every CacheResetInterval steps and
// checks for cancellation.
func (r *run) resetCache(budget int, last *int) error {
	if *last-budget <= CacheResetInterval {
		return nil
	}
	r.state.Tracker.ResetPolicyCache()
	*last = budget
	return r.ctx.Err()
}

func (r *run) result(status core.Status, spent int) *Result {
	prog, score := r.state.BestProgram()
	return &Result{
		Status: status,
		Prog:   prog,
		Score:  score,
		Cost:   r.state.AddCost(spent),
		State:  r.state,
	}
}
