package worker

import (
	"context"

	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
)

// Synthesizer is the contract shared by the in-process solver and remote
// clients.
type Synthesizer interface {
	// Synthesize searches for a program solving the request.
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

// Kind names a search strategy.
type Kind string

const (
	KindHillClimb Kind = "hillclimb"
	KindSMC       Kind = "smc"
	KindRandom    Kind = "random"
)

// Request is one synthesis call.
type Request struct {
	Problem core.Problem
	// Lang is the language normalized against Problem.Spec, inputs
	// included. It is not modified.
	Lang    *lang.Language
	Scorer  core.Scorer
	Options Options
}
