package worker

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/testkit"
)

var intSpec = []core.IOSpec{{Kind: "input", Name: "x", Type: "int"}, {Kind: "output", Type: "int"}}

type builder struct {
	t   *testing.T
	l   *lang.Language
	ids *ast.IDs
}

func newBuilder(t *testing.T) *builder {
	t.Helper()
	return &builder{t: t, l: arith(t), ids: &ast.IDs{}}
}

func arith(t *testing.T) *lang.Language {
	t.Helper()
	decls, err := testkit.Declarations("arith")
	require.NoError(t, err)
	l, err := lang.New(decls, intSpec)
	require.NoError(t, err)
	return l
}

func (b *builder) fun(name string, args ...ast.Node) ast.Node {
	p, ok := b.l.Fun(name)
	require.True(b.t, ok, name)
	f := ast.NewFun(b.ids.Next(), name, p.Imp, args)
	f.Type = p.Return
	return f
}

func (b *builder) x() ast.Node {
	n := ast.NewInput(b.ids.Next(), "x")
	n.Type = lang.IntType
	return n
}

func (b *builder) num(v int) ast.Node {
	n := ast.NewInt(b.ids.Next(), v, 0, 3)
	n.Type = lang.IntType
	return n
}

// prepare gives every program sites and measures.
func prepare(progs ...ast.Node) []ast.Node {
	for _, p := range progs {
		ast.ResetSites(p)
	}
	return progs
}

func stateOf(t *testing.T, seed int64, beam []Candidate) *State {
	t.Helper()
	st := NewState(len(beam), rand.New(rand.NewSource(seed)))
	st.Beam = beam
	for _, c := range beam {
		st.UpdateBest(c.Score, c.Prog)
	}
	st.Sort()
	return st
}

func evalAt(t *testing.T, prog ast.Node, in core.Inputs) core.Value {
	t.Helper()
	v, err := ast.Eval(prog, in)
	require.NoError(t, err, prog.String())
	return v
}

func request(t *testing.T, name string, opts Options) Request {
	t.Helper()
	c, err := testkit.Lookup(name)
	require.NoError(t, err)
	decls, err := testkit.Declarations(c.Language)
	require.NoError(t, err)
	l, err := lang.New(decls, c.Problem.Spec)
	require.NoError(t, err)
	return Request{Problem: c.Problem, Lang: l, Scorer: core.Scorers[c.Scorer], Options: opts}
}
