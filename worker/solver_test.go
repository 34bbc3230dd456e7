package worker

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/worker/telemetry"
)

func TestSynthesizeIdentity(t *testing.T) {
	s := &Solver{}
	for _, kind := range Kinds() {
		for _, beam := range []int{1, 10} {
			req := request(t, "identity", Options{Solver: kind, BeamSize: beam, Seed: 7})
			req.Problem.Budget = 1
			res, err := s.Synthesize(context.Background(), req)
			require.NoError(t, err, kind)
			assert.Equal(t, core.StatusCorrect, res.Status, kind)
			assert.Equal(t, 0.0, res.Score)
			require.NotNil(t, res.Prog)
			assert.Equal(t, 1.5, evalAt(t, res.Prog, core.Inputs{"x": 1.5}))
		}
	}
}

func checkSolves(t *testing.T, res *Result, examples []core.Example) {
	t.Helper()
	require.Equal(t, core.StatusCorrect, res.Status, res.String())
	assert.Less(t, res.Score, 0.001)
	for _, e := range core.NormalizeExamples(examples) {
		out, err := ast.Eval(res.Prog, e.In)
		require.NoError(t, err)
		assert.True(t, core.SameValue(e.Out, out), "%s on %v", res.Prog, e)
	}
}

func TestSynthesizeAddXY(t *testing.T) {
	for _, kind := range []Kind{KindHillClimb, KindSMC} {
		t.Run(string(kind), func(t *testing.T) {
			req := request(t, "addxy", Options{Solver: kind, Seed: 11})
			req.Problem.Budget *= 3
			res, err := (&Solver{}).Synthesize(context.Background(), req)
			require.NoError(t, err)
			checkSolves(t, res, req.Problem.Examples)
			assert.LessOrEqual(t, res.Cost, req.Problem.Budget+DefaultSMCBeam)
		})
	}
}

func TestSynthesizeRecordsTelemetry(t *testing.T) {
	tel := telemetry.New(prometheus.NewRegistry())
	s := &Solver{Telemetry: tel}
	req := request(t, "identity", Options{Seed: 3})
	_, err := s.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.RunsTotal.WithLabelValues("hillclimb", "CORRECT")))
	assert.Equal(t, float64(DefaultHillClimbBeam), testutil.ToFloat64(tel.CandidatesTotal.WithLabelValues("hillclimb", "random")))
}

func TestSynthesizeErrors(t *testing.T) {
	s := &Solver{}
	ctx := context.Background()

	req := request(t, "double", Options{Solver: "anneal"})
	_, err := s.Synthesize(ctx, req)
	assert.True(t, errors.Is(err, ErrUnknownSolver), err)

	req = request(t, "double", Options{})
	req.Problem.Spec = []core.IOSpec{{Kind: "input", Name: "x", Type: "int"}, {Kind: "output", Type: "string"}}
	_, err = s.Synthesize(ctx, req)
	assert.True(t, errors.Is(err, ErrNoProgram), err)

	req = request(t, "double", Options{})
	req.Lang = nil
	_, err = s.Synthesize(ctx, req)
	assert.Error(t, err)

	req = request(t, "double", Options{})
	req.Scorer = core.ScoreFunc(func([]core.Example, []core.Value) float64 { return 2 })
	_, err = s.Synthesize(ctx, req)
	assert.True(t, errors.Is(err, core.ErrInvalidScore), err)
}

func TestSynthesizeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := request(t, "2dreduce", Options{Seed: 5})
	_, err := (&Solver{}).Synthesize(ctx, req)
	assert.True(t, errors.Is(err, context.Canceled), err)
}

func TestSynthesizeResume(t *testing.T) {
	s := &Solver{}
	req := request(t, "reducebasic", Options{Seed: 21, Componentize: true})
	req.Problem.Budget = 400
	first, err := s.Synthesize(context.Background(), req)
	require.NoError(t, err)
	if first.Solved() {
		t.Skip("solved before resuming")
	}

	doc, err := EncodeResult(first)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	st, err := UnmarshalSnapshot(raw, req.Lang, rand.New(rand.NewSource(1)), nil)
	require.NoError(t, err)

	req.Options.InitialState = st
	req.Options.Seed = 22
	second, err := s.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.State.ID, second.State.ID)
	assert.Greater(t, second.Cost, first.Cost)
	assert.LessOrEqual(t, second.Score, first.Score)
}

// With a stalled search the beam gets componentized; whatever was learned
// must keep every beam entry's recorded score honest.
func TestSynthesizeComponentizeKeepsScores(t *testing.T) {
	tel := telemetry.New(prometheus.NewRegistry())
	req := request(t, "prodreduce", Options{Seed: 9, Componentize: true})
	req.Problem.Budget = 3000
	res, err := (&Solver{Telemetry: tel}).Synthesize(context.Background(), req)
	require.NoError(t, err)

	st := res.State
	require.NotEmpty(t, st.Extra)
	assert.Equal(t, float64(len(st.Extra)), testutil.ToFloat64(tel.ComponentsTotal))
	l := st.Extend(req.Lang)
	for _, p := range st.Extra {
		assert.True(t, l.Has(p.Name))
		require.NotNil(t, p.Source)
		assert.Len(t, p.ArgTypes, p.Arity())
	}
	ex := core.NormalizeExamples(req.Problem.Examples)
	for _, c := range st.Beam {
		outputs := make([]core.Value, len(ex))
		bad := false
		for i, e := range ex {
			v, err := ast.Eval(c.Prog, e.In)
			if err != nil {
				bad = true
				break
			}
			outputs[i] = v
		}
		if bad {
			assert.Equal(t, 1.0, c.Score)
			continue
		}
		assert.InDelta(t, req.Scorer.Score(ex, outputs), c.Score, 1e-9, c.Prog.String())
	}
}

func TestResultMerge(t *testing.T) {
	s := &Solver{}
	var results []*Result
	for seed := int64(1); seed <= 2; seed++ {
		req := request(t, "prodreduce", Options{Seed: seed})
		req.Problem.Budget = 200
		res, err := s.Synthesize(context.Background(), req)
		require.NoError(t, err)
		results = append(results, res)
	}
	a, b := results[0], results[1]
	want := min(a.Score, b.Score)
	cost := a.Cost + b.Cost
	bestA, bestB := a.State.BestScore, b.State.BestScore

	a.Merge(b, DefaultHillClimbBeam)
	assert.Equal(t, want, a.Score)
	assert.Equal(t, cost, a.Cost)
	_, score := a.State.BestProgram()
	assert.LessOrEqual(t, score, min(bestA, bestB))
	assert.Len(t, a.State.Beam, DefaultHillClimbBeam)
	assert.Contains(t, a.String(), string(a.Status))
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []Kind{KindHillClimb, KindRandom, KindSMC}, Kinds())
	_, err := lookup("nope")
	assert.True(t, errors.Is(err, ErrUnknownSolver))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, KindHillClimb, o.Solver)
	assert.Equal(t, DefaultHillClimbBeam, o.BeamSize)
	assert.NotZero(t, o.Seed)

	o = Options{Solver: KindSMC}.withDefaults()
	assert.Equal(t, DefaultSMCBeam, o.BeamSize)
}
