package worker

import (
	"go.uber.org/zap"

	"github.com/snow-ghost/synth/core"
)

const (
	// RejuvenationCooldown is the initial number of steps between a beam
	// converging and its worse half being regenerated.
	RejuvenationCooldown = 300
	// MinLearnInterval is the smallest stall window before library
	// learning kicks in.
	MinLearnInterval = 100
)

// hillClimb alternates between fresh random programs, which replace the
// worst entry, and mutations of random entries, which replace their
// source when they score better.
func hillClimb(r *run) (*Result, error) {
	st := r.state
	budget := r.budget
	spent, err := r.populate()
	if err != nil {
		return nil, err
	}
	budget -= spent
	st.Sort()
	if st.High() < r.threshold {
		return r.result(core.StatusCorrect, r.budget-budget), nil
	}

	learnStep := max(r.budget/10, MinLearnInterval)
	cooldown := float64(RejuvenationCooldown)
	rejuvenate := -1
	lastReset := budget
	high, low := st.High(), st.Low()
	lastChange := budget

	for budget > 0 {
		if err := r.resetCache(budget, &lastReset); err != nil {
			return nil, err
		}
		if high != st.High() || low != st.Low() {
			lastChange = budget
			high, low = st.High(), st.Low()
		}
		if r.learn && budget < lastChange-learnStep {
			r.componentize()
			lastChange = budget
			learnStep *= 2
		}
		budget--

		if r.rng.Float64() < 0.5 {
			prog, err := r.random()
			if err != nil {
				return nil, err
			}
			score, err := r.test(prog, "random", false)
			if err != nil {
				return nil, err
			}
			if score < 1 && score <= st.Low() {
				st.ReplaceWorst(r.rng, Candidate{Prog: prog, Score: score})
			}
		} else {
			idx := r.rng.Intn(len(st.Beam))
			cur := st.Beam[idx]
			if prog, ok := r.mutate(cur.Prog); ok {
				score, err := r.test(prog, "mutation", false)
				if err != nil {
					return nil, err
				}
				if score < cur.Score || score == cur.Score && prog.M().Depth < cur.Prog.M().Depth {
					st.Beam[idx] = Candidate{Prog: prog, Score: score}
				}
			}
		}

		st.SortByDepth()
		if st.High() < r.threshold {
			return r.result(core.StatusCorrect, r.budget-budget), nil
		}
		if budget == rejuvenate {
			if err := r.rejuvenate(); err != nil {
				return nil, err
			}
			rejuvenate = -1
			cooldown *= 1.5
		}
		if st.High() < 1 && st.High() == st.Low() && rejuvenate < 1 {
			rejuvenate = budget - int(cooldown)
		}
	}
	return r.result(core.StatusIncorrect, r.budget-budget), nil
}

// rejuvenate regenerates the worse half of the beam.
func (r *run) rejuvenate() error {
	st := r.state
	for i := len(st.Beam) / 2; i < len(st.Beam); i++ {
		prog, err := r.random()
		if err != nil {
			return err
		}
		score, err := r.test(prog, "random", false)
		if err != nil {
			return err
		}
		st.Beam[i] = Candidate{Prog: prog, Score: score}
	}
	st.SortByDepth()
	r.tel.Rejuvenation()
	r.log.Debug("rejuvenated", zap.Float64("score", st.High()))
	return nil
}
