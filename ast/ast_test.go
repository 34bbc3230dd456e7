package ast

import (
	"encoding/json"
	"testing"

	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/typesys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(v core.Value) float64 {
	f, _ := core.AsFloat(v)
	return f
}

var (
	addImp Imp = func(args []core.Value, _ core.Inputs) (core.Value, error) {
		return num(args[0]) + num(args[1]), nil
	}
	mulImp Imp = func(args []core.Value, _ core.Inputs) (core.Value, error) {
		return num(args[0]) * num(args[1]), nil
	}
	divImp Imp = func(args []core.Value, _ core.Inputs) (core.Value, error) {
		if num(args[1]) == 0 {
			return nil, BadArg(1, "division by zero")
		}
		return num(args[0]) / num(args[1]), nil
	}
	mapImp Imp = func(args []core.Value, _ core.Inputs) (core.Value, error) {
		lst, ok := core.AsList(args[0])
		if !ok {
			return nil, BadArg(0, "not a list")
		}
		f, ok := args[1].(core.Closure)
		if !ok {
			return nil, BadArg(1, "not a function")
		}
		out := make([]core.Value, len(lst))
		for i, e := range lst {
			v, err := f(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	scaleImp ParamImp = func(param any) Imp {
		k := num(param)
		return func(args []core.Value, _ core.Inputs) (core.Value, error) {
			return k * num(args[0]), nil
		}
	}
)

type testLib map[string]Binding

func (l testLib) Lookup(name string) (Binding, bool) {
	b, ok := l[name]
	return b, ok
}

var lib = testLib{
	"add":   {Imp: addImp},
	"mul":   {Imp: mulImp},
	"div":   {Imp: divImp},
	"map":   {Imp: mapImp},
	"scale": {ParamImp: scaleImp},
}

func sample(ids *IDs) Node {
	// map(xs, λ add(mul($0, 2), y))
	body := NewFun(ids.Next(), "add", addImp, []Node{
		NewFun(ids.Next(), "mul", mulImp, []Node{NewIndex(ids.Next(), 0), NewInt(ids.Next(), 2, 0, 5)}),
		NewInput(ids.Next(), "y"),
	})
	return NewFun(ids.Next(), "map", mapImp, []Node{NewInput(ids.Next(), "xs"), NewLambda(ids.Next(), body)})
}

func TestSizeInvariant(t *testing.T) {
	ids := &IDs{}
	prog := sample(ids)
	withHoles := NewFun(ids.Next(), "add", addImp, []Node{NewHole(), NewFun(ids.Next(), "mul", mulImp, []Node{NewPlug(0), NewInt(ids.Next(), 1, 0, 5)})})

	for _, p := range []Node{prog, withHoles} {
		Walk(p, func(n Node) bool {
			want := 1
			switch n.(type) {
			case *Hole, *Plug:
				want = 0
			}
			for _, c := range n.Children() {
				want += c.M().Size
			}
			if want == 0 && len(n.Children()) > 0 {
				want = 1
			}
			assert.Equal(t, want, n.M().Size, n.String())
			return true
		})
	}
	assert.Equal(t, 8, prog.M().Size)
	assert.Equal(t, 4, prog.M().Depth)
	assert.Equal(t, 3, withHoles.M().Size)
}

func TestEvalClosure(t *testing.T) {
	prog := sample(&IDs{})
	out, err := Eval(prog, core.Inputs{"xs": []core.Value{1, 2, 3}, "y": 10})
	require.NoError(t, err)
	assert.Equal(t, []core.Value{12.0, 14.0, 16.0}, out)
	assert.Equal(t, "map(xs, (λadd(mul($0, 2), y)))", prog.String())
}

func TestNestedIndices(t *testing.T) {
	ids := &IDs{}
	// λ λ add($1, $0) applied through nested maps over a matrix
	inner := NewLambda(ids.Next(), NewFun(ids.Next(), "add", addImp, []Node{NewIndex(ids.Next(), 1), NewIndex(ids.Next(), 0)}))
	outer := NewLambda(ids.Next(), NewFun(ids.Next(), "map", mapImp, []Node{NewInput(ids.Next(), "ys"), inner}))
	prog := NewFun(ids.Next(), "map", mapImp, []Node{NewInput(ids.Next(), "xs"), outer})

	out, err := Eval(prog, core.Inputs{"xs": []core.Value{1, 2}, "ys": []core.Value{10, 20}})
	require.NoError(t, err)
	assert.Equal(t, []core.Value{[]core.Value{11.0, 21.0}, []core.Value{12.0, 22.0}}, out)
}

func TestBadResultLocalized(t *testing.T) {
	ids := &IDs{}
	zero := NewInt(ids.Next(), 0, 0, 5)
	div := NewFun(ids.Next(), "div", divImp, []Node{NewInput(ids.Next(), "x"), zero})
	prog := NewFun(ids.Next(), "add", addImp, []Node{div, NewInt(ids.Next(), 1, 0, 5)})

	_, err := Eval(prog, core.Inputs{"x": 3})
	var br *BadResult
	require.ErrorAs(t, err, &br)
	assert.Same(t, prog, br.Parent)
	assert.Equal(t, 0, br.ParentIdx)
	assert.Same(t, div, br.Main.(*Fun))
	assert.Equal(t, 1, br.ChildIdx)

	_, err = Eval(div, core.Inputs{"x": 3})
	require.ErrorAs(t, err, &br)
	assert.Nil(t, br.Parent)
	assert.Equal(t, -1, br.ParentIdx)
}

func TestBadResultInsideLambda(t *testing.T) {
	ids := &IDs{}
	body := NewFun(ids.Next(), "div", divImp, []Node{NewIndex(ids.Next(), 0), NewInt(ids.Next(), 0, 0, 5)})
	lam := NewLambda(ids.Next(), body)
	prog := NewFun(ids.Next(), "map", mapImp, []Node{NewInput(ids.Next(), "xs"), lam})

	_, err := Eval(prog, core.Inputs{"xs": []core.Value{1}})
	var br *BadResult
	require.ErrorAs(t, err, &br)
	assert.Same(t, lam, br.Parent.(*Lambda))
	assert.Equal(t, 1, br.ChildIdx)
}

func TestParametric(t *testing.T) {
	ids := &IDs{}
	f := NewParamFun(ids.Next(), "scale", scaleImp, 3.0, []Node{NewInput(ids.Next(), "x")})
	out, err := Eval(f, core.Inputs{"x": 2})
	require.NoError(t, err)
	assert.Equal(t, 6.0, out)
	assert.Equal(t, "scale[3](x)", f.String())

	g := NewParamFun(ids.Next(), "scale", scaleImp, 4.0, []Node{NewInput(ids.Next(), "x")})
	assert.False(t, Equal(f, g))
}

func TestEqual(t *testing.T) {
	a := sample(&IDs{})
	b := sample(&IDs{})
	assert.True(t, Equal(a, b))
	ids := &IDs{}
	c := NewFun(ids.Next(), "add", addImp, []Node{NewInput(ids.Next(), "x"), NewInt(ids.Next(), 1, 0, 5)})
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(NewIndex(1, 0), NewIndex(2, 1)))
}

func TestMapSharesUnchanged(t *testing.T) {
	prog := sample(&IDs{}).(*Fun)
	same := Map(prog, func(n Node) Node { return n })
	assert.Same(t, prog, same.(*Fun))

	bumped := Map(prog, func(n Node) Node {
		if lit, ok := n.(*IntLit); ok {
			cp := *lit
			cp.Val = 3
			return &cp
		}
		return n
	})
	assert.NotSame(t, prog, bumped.(*Fun))
	assert.Same(t, prog.Args[0], bumped.(*Fun).Args[0])
	assert.Equal(t, "map(xs, (λadd(mul($0, 3), y)))", bumped.String())
	assert.Equal(t, "map(xs, (λadd(mul($0, 2), y)))", prog.String())
}

func TestReplaceAndRename(t *testing.T) {
	prog := sample(&IDs{})
	repl := Replace(prog, func(n Node) (Node, bool) {
		if in, ok := n.(*Input); ok && in.Name == "y" {
			return NewInt(99, 7, 0, 9), true
		}
		return nil, false
	})
	assert.Equal(t, "map(xs, (λadd(mul($0, 2), 7)))", repl.String())

	uses := map[string]int{}
	renamed := Rename(prog, map[string]string{"add": "plus", "map": "fmap"}, uses)
	assert.Equal(t, "fmap(xs, (λplus(mul($0, 2), y)))", renamed.String())
	assert.Equal(t, map[string]int{"add": 1, "map": 1}, uses)

	counts := map[string]int{}
	Uses(prog, counts)
	assert.Equal(t, 1, counts["mul"])
}

func TestFreeIndices(t *testing.T) {
	ids := &IDs{}
	free := NewFun(ids.Next(), "add", addImp, []Node{NewIndex(ids.Next(), 1), NewIndex(ids.Next(), 0)})
	lam := NewLambda(ids.Next(), free)
	closed := NewLambda(ids.Next(), lam)

	dbidx := FreeIndices(closed)
	assert.Equal(t, 1, dbidx[free])
	assert.Equal(t, 0, dbidx[lam])
	assert.Equal(t, -1, dbidx[closed])
}

func TestCompileComponent(t *testing.T) {
	ids := &IDs{}
	// add(mul(#, #), #) renumbered in pre-order
	pattern := NewFun(ids.Next(), "add", addImp, []Node{
		NewFun(ids.Next(), "mul", mulImp, []Node{NewPlug(7), NewPlug(7)}),
		NewPlug(7),
	})
	numbered, n := NumberPlugs(pattern)
	require.Equal(t, 3, n)
	assert.Equal(t, 0, numbered.(*Fun).Args[0].(*Fun).Args[0].(*Plug).Pos)
	assert.Equal(t, 2, numbered.(*Fun).Args[1].(*Plug).Pos)

	imp := Compile(numbered)
	out, err := imp([]core.Value{2, 3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out)

	_, err = imp([]core.Value{2}, nil)
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	ids := &IDs{}
	prog := sample(ids)
	prog.M().Type = typesys.MustParse("list[float]")
	prog.M().Site = StartSite()
	scaled := NewParamFun(ids.Next(), "scale", scaleImp, 2.5, []Node{NewInput(ids.Next(), "y")})
	progs := []Node{prog, scaled}

	in := core.Inputs{"xs": []core.Value{1, 2}, "y": 4}
	for _, p := range progs {
		d, err := Encode(p)
		require.NoError(t, err)
		raw, err := json.Marshal(d)
		require.NoError(t, err)

		var back Doc
		require.NoError(t, json.Unmarshal(raw, &back))
		fresh := &IDs{}
		got, err := Decode(&back, lib, fresh)
		require.NoError(t, err)

		assert.True(t, Equal(p, got))
		assert.Equal(t, p.String(), got.String())
		assert.Equal(t, p.M().Size, got.M().Size)
		assert.Equal(t, p.M().ID, got.M().ID)
		assert.GreaterOrEqual(t, fresh.Next(), p.M().ID+1)

		want, err := Eval(p, in)
		require.NoError(t, err)
		have, err := Eval(got, in)
		require.NoError(t, err)
		assert.Equal(t, want, have)
	}

	_, err := Decode(&Doc{Kind: "fun", Name: "nope"}, lib, nil)
	assert.ErrorIs(t, err, ErrUnknownPrimitive)
}

func TestFingerprint(t *testing.T) {
	s := StartSite()
	child := s.Child("fun/add", 1)
	assert.Equal(t, s.Next("fun/add"), Fingerprint{Depth: 1, Grandpa: "START", Pos: 0, Parent: "fun/add"})
	assert.Equal(t, Fingerprint{Depth: 1, Grandpa: "START", Pos: 0, Parent: "fun/add"}, child.Fingerprint())

	fp := child.Next("input/x")
	back, err := ParseFingerprint(fp.String())
	require.NoError(t, err)
	assert.Equal(t, fp, back)

	_, err = ParseFingerprint("garbage")
	assert.Error(t, err)
}

func TestIDs(t *testing.T) {
	ids := &IDs{}
	assert.Equal(t, 1, ids.Next())
	ids.Observe(10)
	assert.Equal(t, 11, ids.Next())
	ids.Observe(3)
	assert.Equal(t, 12, ids.Next())
}
