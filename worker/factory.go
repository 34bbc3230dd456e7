package worker

import (
	"fmt"
	"sort"
)

// strategy drives one run to a result.
type strategy func(r *run) (*Result, error)

var strategies = map[Kind]strategy{
	KindHillClimb: hillClimb,
	KindSMC:       smc,
	KindRandom:    randomSearch,
}

// Kinds lists the available strategies.
func Kinds() []Kind {
	out := make([]Kind, 0, len(strategies))
	for k := range strategies {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func lookup(kind Kind) (strategy, error) {
	s, ok := strategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, kind)
	}
	return s, nil
}
