package worker

import (
	"math"

	"github.com/snow-ghost/synth/core"
)

// mutationRate is the share of resampled entries that get mutated.
const mutationRate = 0.9

func mass(score float64) float64 { return math.Exp(-3 * score) }

// smc resamples the beam in proportion to exp(-3*score) and mutates most
// of the resampled entries.
func smc(r *run) (*Result, error) {
	st := r.state
	budget := r.budget
	spent, err := r.populate()
	if err != nil {
		return nil, err
	}
	budget -= spent
	total := 0.0
	for _, c := range st.Beam {
		total += mass(c.Score)
	}
	st.Sort()
	if st.High() < r.threshold {
		return r.result(core.StatusCorrect, r.budget-budget), nil
	}

	lastReset := budget
	for budget > 0 {
		if err := r.resetCache(budget, &lastReset); err != nil {
			return nil, err
		}
		size := len(st.Beam)
		picked := make([]Candidate, 0, size)
		for _, c := range st.Beam {
			n := int(math.Ceil(float64(size) * mass(c.Score) / total))
			for i := 0; i < n && len(picked) < size; i++ {
				picked = append(picked, c)
			}
		}

		total = 0
		next := make([]Candidate, 0, len(picked))
		for _, c := range picked {
			prog, origin, validated := c.Prog, "resample", c.Score < 1
			if r.rng.Float64() < mutationRate {
				budget--
				if mutated, ok := r.mutate(c.Prog); ok {
					prog, origin, validated = mutated, "mutation", false
				}
			}
			score, err := r.test(prog, origin, validated)
			if err != nil {
				return nil, err
			}
			total += mass(score)
			st.UpdateBest(score, prog)
			next = append(next, Candidate{Prog: prog, Score: score})
		}
		st.Beam = next

		if st.BestScore < r.threshold {
			return r.result(core.StatusCorrect, r.budget-budget), nil
		}
		st.Sort()
	}
	return r.result(core.StatusIncorrect, r.budget-budget), nil
}
