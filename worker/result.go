package worker

import (
	"fmt"
	"strings"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
)

// Result is the outcome of a synthesis run.
type Result struct {
	Status core.Status
	Prog   ast.Node
	Score  float64
	Cost   int
	State  *State
}

// Solved reports whether the run met its threshold.
func (r *Result) Solved() bool { return r.Status == core.StatusCorrect }

// Merge folds other into r, keeping the better program and adding up
// costs. The states are merged into a beam of beamSize.
func (r *Result) Merge(other *Result, beamSize int) {
	if other.Score < r.Score {
		r.Score = other.Score
		r.Prog = other.Prog
		r.Status = other.Status
	}
	r.Cost += other.Cost
	switch {
	case r.State == nil:
		r.State = other.State
	case other.State != nil:
		r.State.Merge(other.State, beamSize)
		// component names changed; the state holds the renamed best
		if best, score := r.State.BestProgram(); best != nil && score == r.Score {
			r.Prog = best
		}
	}
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s cost:%d score: %g\t%s", r.Status, r.Cost, r.Score, programString(r.Prog))
	if r.State != nil && len(r.State.Extra) > 0 {
		b.WriteByte('\n')
		for _, p := range r.State.Extra {
			fmt.Fprintf(&b, "%s : %s\n", p.Name, p.Source)
		}
	}
	return b.String()
}
