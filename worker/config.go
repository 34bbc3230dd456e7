package worker

import "time"

// Default beam sizes per strategy.
const (
	DefaultHillClimbBeam = 10
	DefaultSMCBeam       = 20
)

// Options is the per call configuration.
type Options struct {
	Solver       Kind
	BeamSize     int
	Componentize bool
	// InitialState resumes a previous search. It must have been decoded
	// against the request's language and is taken over by the run.
	InitialState *State
	// Seed drives all random choices; zero picks a time based seed.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.Solver == "" {
		o.Solver = KindHillClimb
	}
	if o.BeamSize <= 0 {
		o.BeamSize = DefaultHillClimbBeam
		if o.Solver == KindSMC {
			o.BeamSize = DefaultSMCBeam
		}
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}
