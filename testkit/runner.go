package testkit

import (
	"context"
	"time"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
)

// Runner replays programs against examples.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

// Run evaluates prog on every example and aggregates pass/fail metrics.
// A case passes when the output equals the target exactly.
func (r *Runner) Run(ctx context.Context, prog ast.Node, examples []core.Example) (map[string]float64, bool, error) {
	metrics := map[string]float64{
		"cases_total":       0,
		"cases_passed":      0,
		"cases_failed":      0,
		"duration_ms_total": 0,
	}

	allPassed := true
	for _, e := range examples {
		if err := ctx.Err(); err != nil {
			return metrics, false, err
		}
		start := time.Now()
		out, err := ast.Eval(prog, e.In)
		metrics["duration_ms_total"] += float64(time.Since(start).Milliseconds())
		metrics["cases_total"]++

		if err == nil && core.SameValue(e.Out, out) {
			metrics["cases_passed"]++
			continue
		}
		metrics["cases_failed"]++
		allPassed = false
	}
	return metrics, allPassed, nil
}

// Outputs evaluates prog on every example. Evaluation errors yield nil
// outputs.
func Outputs(prog ast.Node, examples []core.Example) []core.Value {
	out := make([]core.Value, len(examples))
	for i, e := range examples {
		v, err := ast.Eval(prog, e.In)
		if err == nil {
			out[i] = v
		}
	}
	return out
}
