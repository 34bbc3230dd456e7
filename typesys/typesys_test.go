package typesys

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := map[string]string{
		"int":                                        "int",
		"int->int->int":                              "int -> int -> int",
		`list[\alpha]->(\alpha->\beta)->list[\beta]`: "list[α] -> (α -> β) -> list[β]",
		"map[string, list[int]]":                     "map[string, list[int]]",
		"(int -> int) -> int":                        "(int -> int) -> int",
		"α -> β":                                     "α -> β",
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)

		again, err := Parse(got.String())
		require.NoError(t, err)
		assert.True(t, Equal(got, again))
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "int ->", "list[int", "(int", "int int", `\`} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrParse, in)
	}
}

func TestArity(t *testing.T) {
	assert.Equal(t, 0, Arity("int"))
	assert.Equal(t, 3, Arity("int->int->int->int"))
	assert.Equal(t, 2, Arity(`list[\alpha]->(\alpha->\beta)->list[\beta]`))
	assert.Equal(t, 3, Arity(`list[\alpha]->(\alpha->\beta->\beta)->\beta->\beta`))
}

func TestFixedAndContains(t *testing.T) {
	a := Var{Name: "α", ID: 3}
	assert.True(t, MustParse("list[int]").Fixed())
	assert.False(t, MustParse(`list[\alpha]`).Fixed())
	assert.True(t, Contains(Param{Name: "list", Args: []Type{a}}, a))
	assert.False(t, Contains(Param{Name: "list", Args: []Type{Var{Name: "α"}}}, a))
	assert.Equal(t, "α.3", a.String())
}

func TestSplitArrow(t *testing.T) {
	ft := MustParse(`list[\alpha]->(\alpha->\beta)->list[\beta]`)
	args, ret := Split(ft, 2)
	require.Len(t, args, 2)
	assert.Equal(t, "list[α]", args[0].String())
	assert.Equal(t, "α -> β", args[1].String())
	assert.Equal(t, "list[β]", ret.String())
	assert.True(t, Equal(ft, Arrow(args, ret)))
}

func TestUnifyBasics(t *testing.T) {
	c := NewChecker()
	assert.True(t, c.Unify(MustParse("int"), MustParse("int")))
	assert.False(t, c.Unify(MustParse("int"), MustParse("float")))
	assert.False(t, c.Unify(MustParse("list[int]"), MustParse("int -> int")))

	a := Var{Name: "α", ID: 1}
	assert.True(t, c.Unify(Param{Name: "list", Args: []Type{a}}, MustParse("list[int]")))
	assert.Equal(t, "int", c.Convert(a, 0).String())

	// bound variable must agree with later uses
	assert.False(t, c.Unify(a, MustParse("float")))
	assert.True(t, c.Unify(MustParse("int"), a))
}

func TestUnifyVarChains(t *testing.T) {
	c := NewChecker()
	a, b, g := Var{Name: "α", ID: 1}, Var{Name: "β", ID: 2}, Var{Name: "γ", ID: 3}
	require.True(t, c.Unify(a, b))
	require.True(t, c.Unify(b, g))
	require.True(t, c.Unify(g, a))
	require.True(t, c.Unify(g, MustParse("list[int]")))
	assert.Equal(t, "list[int]", c.Resolve(a).String())
	assert.Equal(t, "list[int]", c.Resolve(b).String())
	assert.False(t, c.Unify(a, MustParse("list[float]")))
}

func TestOccursCheck(t *testing.T) {
	c := NewChecker()
	a := Var{Name: "α", ID: 1}
	assert.False(t, c.Unify(a, Param{Name: "list", Args: []Type{a}}))

	b := Var{Name: "β", ID: 1}
	require.True(t, c.Unify(b, a))
	assert.False(t, c.Unify(a, Func{From: b, To: MustParse("int")}))
}

func TestUnifySymmetric(t *testing.T) {
	types := []string{
		"int", "float", `\alpha`, `\beta`, "list[int]", `list[\alpha]`, `list[list[\beta]]`,
		"int -> int", `\alpha -> \beta`, `(\alpha -> int) -> list[\alpha]`, `map[\alpha, int]`,
		`list[\alpha] -> \alpha`,
	}
	for _, sa := range types {
		for _, sb := range types {
			ta := WithID(MustParse(sa), 1)
			tb := WithID(MustParse(sb), 2)

			c1 := NewChecker()
			c2 := NewChecker()
			ab := c1.Unify(ta, tb)
			ba := c2.Unify(tb, ta)
			assert.Equal(t, ab, ba, "%s ~ %s", sa, sb)
			if ab {
				assert.Equal(t, c1.Resolve(ta).String(), c1.Resolve(tb).String())
				assert.True(t, Equal(c1.Resolve(ta), c2.Resolve(ta)) || !c1.Resolve(ta).Fixed())
			}
		}
	}
}

func TestConvertIdempotent(t *testing.T) {
	c := NewChecker()
	a, b := Var{Name: "α", ID: 4}, Var{Name: "β", ID: 4}
	require.True(t, c.Unify(a, MustParse("list[int]")))
	require.True(t, c.Unify(b, Var{Name: "γ", ID: 9}))

	for _, s := range []string{"int", `\alpha -> \beta`, `map[\alpha, \beta]`, `\delta`} {
		once := c.Convert(MustParse(s), 4)
		twice := c.Convert(once, 4)
		assert.True(t, Equal(once, twice), s)
		for _, v := range Vars(once) {
			assert.False(t, c.Bound(v), "%s still mentions bound %s", once, v)
		}
	}
	fixed := MustParse("list[int]")
	assert.Equal(t, fixed, c.Convert(fixed, 7))
}

func TestCheckpointRevert(t *testing.T) {
	c := NewChecker()
	a := Var{Name: "α", ID: 1}
	cp := c.Checkpoint()
	require.True(t, c.Unify(a, MustParse("int")))
	assert.Equal(t, 1, c.Len())
	c.Revert(cp)
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.Unify(a, MustParse("float")))
}

func TestResolutionLimit(t *testing.T) {
	c := NewChecker()
	// hand-built chain deeper than the limit
	for i := 1; i <= MaxResolve+2; i++ {
		c.bindings[Var{Name: "α", ID: i}.String()] = Param{Name: "box", Args: []Type{Var{Name: "α", ID: i + 1}}}
	}
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		c.Resolve(Var{Name: "α", ID: 1})
	}()
	_, ok := recovered.(*ResolutionError)
	assert.True(t, ok, "deep chains are a defect")
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(MustParse("int"), MustParse(`\alpha`)))
	assert.False(t, Compatible(MustParse("int"), MustParse("list[int]")))
	assert.True(t, Compatible(MustParse(`list[\alpha]`), MustParse("list[int]")))
	assert.False(t, Compatible(MustParse("int -> int"), MustParse("int")))
	assert.True(t, Compatible(nil, MustParse("int")))
}

func TestAntiunify(t *testing.T) {
	au := NewAntiunifier()
	got := au.Generalize(MustParse("list[int] -> int"), MustParse("list[float] -> float"))
	assert.Equal(t, "list[α] -> α", got.String())

	au = NewAntiunifier()
	got = au.Fold([]Type{MustParse("int -> int"), MustParse("int -> int"), MustParse("int -> int")})
	assert.Equal(t, "int -> int", got.String())

	got = Canonical(Func{From: Var{Name: "β", ID: 7}, To: Param{Name: "list", Args: []Type{Var{Name: "β", ID: 7}}}})
	assert.Equal(t, "α -> list[α]", got.String())
}

func TestCodecRoundTrip(t *testing.T) {
	for _, s := range []string{"int", `list[\alpha] -> (\alpha -> \beta) -> list[\beta]`, "map[string, int]"} {
		orig := WithID(MustParse(s), 5)
		b, err := json.Marshal(Ref{Type: orig})
		require.NoError(t, err)

		var got Ref
		require.NoError(t, json.Unmarshal(b, &got))
		assert.True(t, Equal(orig, got.Type), s)
	}

	var fromString Ref
	require.NoError(t, json.Unmarshal([]byte(`"list[int] -> int"`), &fromString))
	assert.Equal(t, "list[int] -> int", fromString.Type.String())
}
