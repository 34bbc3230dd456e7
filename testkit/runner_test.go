package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
)

func language(t *testing.T, name string, spec []core.IOSpec) *lang.Language {
	t.Helper()
	decls, err := Declarations(name)
	require.NoError(t, err)
	l, err := lang.New(decls, spec)
	require.NoError(t, err)
	return l
}

func TestLanguagesNormalize(t *testing.T) {
	for _, name := range ProblemNames() {
		c, err := Lookup(name)
		require.NoError(t, err)
		l := language(t, c.Language, c.Problem.Spec)
		assert.Greater(t, l.Len(), 0, name)
		_, ok := core.Scorers[c.Scorer]
		assert.True(t, ok, name)
	}
	_, err := Declarations("nope")
	assert.Error(t, err)
	assert.Contains(t, LanguageNames(), "simplmap")
}

func TestRunner_Run_MapIncrement(t *testing.T) {
	c, err := Lookup("mapincrement")
	require.NoError(t, err)
	l := language(t, c.Language, c.Problem.Spec)
	mad, _ := l.Fun("mad")
	mp, _ := l.Fun("map")

	// map(x, λ mad(1, $0, 1))
	body := ast.NewFun(4, "mad", mad.Imp, []ast.Node{ast.NewInt(5, 1, 0, 5), ast.NewIndex(6, 0), ast.NewInt(7, 1, 0, 5)})
	prog := ast.NewFun(1, "map", mp.Imp, []ast.Node{ast.NewInput(2, "x"), ast.NewLambda(3, body)})

	metrics, pass, err := NewRunner().Run(context.Background(), prog, c.Problem.Examples)
	require.NoError(t, err)
	assert.True(t, pass)
	assert.Equal(t, 2.0, metrics["cases_passed"])
	assert.Equal(t, metrics["cases_total"], metrics["cases_passed"]+metrics["cases_failed"])
	assert.Equal(t, 0.0, core.NumScore(c.Problem.Examples, Outputs(prog, c.Problem.Examples)))
}

func TestRunner_Run_Reduce(t *testing.T) {
	c, err := Lookup("reducebasic")
	require.NoError(t, err)
	l := language(t, c.Language, c.Problem.Spec)
	mad, _ := l.Fun("mad")
	red, _ := l.Fun("reduce")

	// reduce(x, λλ mad(1, $1, $0), 0)
	body := ast.NewFun(5, "mad", mad.Imp, []ast.Node{ast.NewInt(6, 1, 0, 5), ast.NewIndex(7, 1), ast.NewIndex(8, 0)})
	prog := ast.NewFun(1, "reduce", red.Imp, []ast.Node{
		ast.NewInput(2, "x"),
		ast.NewLambda(3, ast.NewLambda(4, body)),
		ast.NewInt(9, 0, 0, 5),
	})
	_, pass, err := NewRunner().Run(context.Background(), prog, c.Problem.Examples)
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestRunner_FailingProgram(t *testing.T) {
	c, err := Lookup("double")
	require.NoError(t, err)
	prog := ast.NewInput(1, "x")
	metrics, pass, err := NewRunner().Run(context.Background(), prog, c.Problem.Examples)
	require.NoError(t, err)
	assert.False(t, pass)
	assert.Equal(t, 3.0, metrics["cases_failed"])
}

func TestRunner_BadArgumentIsFailure(t *testing.T) {
	l := language(t, "simplmap", []core.IOSpec{{Kind: "input", Name: "x", Type: "int"}, {Kind: "output", Type: "int"}})
	mp, _ := l.Fun("map")
	prog := ast.NewFun(1, "map", mp.Imp, []ast.Node{ast.NewInput(2, "x"), ast.NewInput(3, "x")})
	out := Outputs(prog, []core.Example{{In: core.Inputs{"x": 3}, Out: 3}})
	assert.Equal(t, []core.Value{nil}, out)
}
