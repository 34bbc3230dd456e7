package lang

import (
	"math/rand"
	"testing"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(args []core.Value, _ core.Inputs) (core.Value, error) { return args[0], nil }

func TestNewNormalizes(t *testing.T) {
	decls := []*Primitive{
		{Name: "map", Kind: KindFun, Sig: `list[\alpha]->(\alpha->\beta)->list[\beta]`, Imp: identity},
		{Name: "N", Kind: KindInt, Lo: 0, Hi: 5},
		{Name: "lambda1", Kind: KindLambda},
	}
	l, err := New(decls, []core.IOSpec{
		{Kind: "input", Name: "x", Type: "list[int]"},
		{Kind: "output", Type: "list[int]"},
	})
	require.NoError(t, err)
	require.Equal(t, 4, l.Len())

	m, ok := l.Fun("map")
	require.True(t, ok)
	assert.Equal(t, 2, m.Arity())
	assert.Equal(t, "list[α]", m.ArgTypes[0].String())
	assert.Equal(t, "α -> β", m.ArgTypes[1].String())
	assert.Equal(t, "list[β]", m.Return.String())

	assert.Equal(t, IntType, l.At(1).Type)
	in := l.At(3)
	assert.Equal(t, KindInput, in.Kind)
	assert.Equal(t, "input/x", in.Label())
	assert.Equal(t, 3, in.Pos)
	for i, p := range l.Prims() {
		assert.Equal(t, i, p.Pos)
	}

	// declarations are copied, not mutated
	assert.Nil(t, decls[0].Type)
}

func TestNewRejectsBadDeclarations(t *testing.T) {
	_, err := New([]*Primitive{{Name: "f", Kind: KindFun, Sig: "int ->"}}, nil)
	assert.ErrorIs(t, err, typesys.ErrParse)

	_, err = New([]*Primitive{{Name: "f", Kind: KindFun, Sig: "int"}}, nil)
	assert.Error(t, err)

	_, err = New([]*Primitive{{Name: "N", Kind: KindInt, Lo: 3, Hi: 1}}, nil)
	assert.Error(t, err)

	_, err = New([]*Primitive{{Name: "p", Kind: KindFun, Sig: "int", ParamImp: func(any) ast.Imp { return identity }}}, nil)
	assert.Error(t, err)
}

func TestLookupAndClone(t *testing.T) {
	l, err := New([]*Primitive{
		{Name: "id", Kind: KindFun, Sig: "int->int", Imp: identity},
		{
			Name: "k", Kind: KindFun, Sig: "int",
			ParamImp:  func(p any) ast.Imp { return func([]core.Value, core.Inputs) (core.Value, error) { return p, nil } },
			ParamInit: func(r *rand.Rand) any { return r.Intn(3) },
		},
	}, nil)
	require.NoError(t, err)

	b, ok := l.Lookup("id")
	require.True(t, ok)
	assert.NotNil(t, b.Imp)
	b, ok = l.Lookup("k")
	require.True(t, ok)
	assert.NotNil(t, b.ParamImp)
	_, ok = l.Lookup("missing")
	assert.False(t, ok)

	ext := l.Clone()
	src, _ := ast.NumberPlugs(ast.NewFun(1, "id", identity, []ast.Node{ast.NewPlug(0)}))
	ext.Add(Synthetic("__foo2", src, typesys.MustParse("int -> int"), 1))
	assert.Equal(t, 3, ext.Len())
	assert.Equal(t, 2, l.Len())
	assert.True(t, ext.Has("__foo2"))
	assert.False(t, l.Has("__foo2"))

	comp, _ := ext.Fun("__foo2")
	assert.True(t, comp.Synthetic)
	assert.Equal(t, 2, comp.Pos)
	out, err := comp.Imp([]core.Value{41}, nil)
	require.NoError(t, err)
	assert.Equal(t, 41, out)
}
