package worker

import "github.com/snow-ghost/synth/core"

// randomSearch draws independent programs and keeps the best one. It
// leaves the beam alone.
func randomSearch(r *run) (*Result, error) {
	st := r.state
	budget := r.budget
	lastReset := budget
	for budget > 0 {
		if err := r.resetCache(budget, &lastReset); err != nil {
			return nil, err
		}
		budget--
		prog, err := r.random()
		if err != nil {
			return nil, err
		}
		score, err := r.test(prog, "random", false)
		if err != nil {
			return nil, err
		}
		st.UpdateBest(score, prog)
		if score < r.threshold {
			return r.result(core.StatusCorrect, r.budget-budget), nil
		}
	}
	return r.result(core.StatusIncorrect, r.budget-budget), nil
}
