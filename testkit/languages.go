// Package testkit ships small languages and problems used by tests, the
// CLI and the HTTP server.
package testkit

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
)

// Languages maps a language name to a constructor of its declarations.
var Languages = map[string]func() []*lang.Primitive{
	"arith":    Arith,
	"simplmap": SimplMap,
	"identity": Identity,
	"affine":   Affine,
	"float":    FloatArith,
}

// LanguageNames lists the registered languages in sorted order.
func LanguageNames() []string {
	names := make([]string, 0, len(Languages))
	for n := range Languages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the primitives of a registered language.
func Declarations(name string) ([]*lang.Primitive, error) {
	mk, ok := Languages[name]
	if !ok {
		return nil, fmt.Errorf("unknown language %q", name)
	}
	return mk(), nil
}

// Catalog serves the registered languages with one scorer for all of
// them.
type Catalog struct {
	Scorer string
}

// Language returns the declarations of a registered language and the
// catalog's scorer, "numeric" by default.
func (c Catalog) Language(name string) ([]*lang.Primitive, core.Scorer, error) {
	decls, err := Declarations(name)
	if err != nil {
		return nil, nil, err
	}
	scorerName := c.Scorer
	if scorerName == "" {
		scorerName = "numeric"
	}
	scorer, ok := core.Scorers[scorerName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown scorer %q", scorerName)
	}
	return decls, scorer, nil
}

func ints(args []core.Value, n int) ([]int, error) {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, ok := core.AsInt(args[i])
		if !ok {
			return nil, ast.BadArg(i, "want int, got %T", args[i])
		}
		out[i] = v
	}
	return out, nil
}

func floats(args []core.Value, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, ok := core.AsFloat(args[i])
		if !ok {
			return nil, ast.BadArg(i, "want number, got %T", args[i])
		}
		out[i] = v
	}
	return out, nil
}

func intOp(arity int, f func(v []int) int) ast.Imp {
	return func(args []core.Value, _ core.Inputs) (core.Value, error) {
		v, err := ints(args, arity)
		if err != nil {
			return nil, err
		}
		return f(v), nil
	}
}

// Arith is integer arithmetic over small constants.
func Arith() []*lang.Primitive {
	return []*lang.Primitive{
		{Name: "add", Kind: lang.KindFun, Sig: "int->int->int", Imp: intOp(2, func(v []int) int { return v[0] + v[1] })},
		{Name: "sub", Kind: lang.KindFun, Sig: "int->int->int", Imp: intOp(2, func(v []int) int { return v[0] - v[1] })},
		{Name: "mul", Kind: lang.KindFun, Sig: "int->int->int", Imp: intOp(2, func(v []int) int { return v[0] * v[1] })},
		{Name: "N", Kind: lang.KindInt, Lo: 0, Hi: 3},
	}
}

// FloatArith is addition and multiplication over floats.
func FloatArith() []*lang.Primitive {
	op := func(f func(a, b float64) float64) ast.Imp {
		return func(args []core.Value, _ core.Inputs) (core.Value, error) {
			v, err := floats(args, 2)
			if err != nil {
				return nil, err
			}
			return f(v[0], v[1]), nil
		}
	}
	return []*lang.Primitive{
		{Name: "add", Kind: lang.KindFun, Sig: "float->float->float", Imp: op(func(a, b float64) float64 { return a + b })},
		{Name: "mul", Kind: lang.KindFun, Sig: "float->float->float", Imp: op(func(a, b float64) float64 { return a * b })},
	}
}

// Identity has a single polymorphic pass-through primitive.
func Identity() []*lang.Primitive {
	return []*lang.Primitive{
		{Name: "id", Kind: lang.KindFun, Sig: `\alpha->\alpha`, Imp: func(args []core.Value, _ core.Inputs) (core.Value, error) {
			return args[0], nil
		}},
	}
}

// Affine has a parametric scaling primitive whose factor is learned by
// mutation, plus addition.
func Affine() []*lang.Primitive {
	scale := func(param any) ast.Imp {
		k := param.(int)
		return intOp(1, func(v []int) int { return k * v[0] })
	}
	return []*lang.Primitive{
		{
			Name:      "scale",
			Kind:      lang.KindFun,
			Sig:       "int->int",
			ParamImp:  scale,
			ParamInit: func(r *rand.Rand) any { return r.Intn(5) - 2 },
			ParamMorph: func(r *rand.Rand, old any) any {
				if r.Intn(2) == 0 {
					return old.(int) + 1
				}
				return old.(int) - 1
			},
			DecodeParam: func(raw json.RawMessage) (any, error) {
				var k int
				err := json.Unmarshal(raw, &k)
				return k, err
			},
		},
		{Name: "add", Kind: lang.KindFun, Sig: "int->int->int", Imp: intOp(2, func(v []int) int { return v[0] + v[1] })},
		{Name: "N", Kind: lang.KindInt, Lo: 0, Hi: 2},
	}
}

// SimplMap is a higher order list language: multiply-add, map, reduce and
// lambdas.
func SimplMap() []*lang.Primitive {
	return []*lang.Primitive{
		{Name: "mad", Kind: lang.KindFun, Sig: "int->int->int->int", Imp: intOp(3, func(v []int) int { return v[0]*v[1] + v[2] })},
		{Name: "N", Kind: lang.KindInt, Lo: 0, Hi: 5},
		{Name: "map", Kind: lang.KindFun, Sig: `list[\alpha]->(\alpha->\beta)->list[\beta]`, Imp: mapImp},
		{Name: "reduce", Kind: lang.KindFun, Sig: `list[\alpha]->(\alpha->\beta->\beta)->\beta->\beta`, Imp: reduceImp},
		{Name: "lambda1", Kind: lang.KindLambda},
	}
}

func closure(v core.Value, arg int) (core.Closure, error) {
	f, ok := v.(core.Closure)
	if !ok {
		return nil, ast.BadArg(arg, "want function, got %T", v)
	}
	return f, nil
}

func mapImp(args []core.Value, _ core.Inputs) (core.Value, error) {
	lst, ok := core.AsList(args[0])
	if !ok {
		return nil, ast.BadArg(0, "want list, got %T", args[0])
	}
	f, err := closure(args[1], 1)
	if err != nil {
		return nil, err
	}
	out := make([]core.Value, len(lst))
	for i, e := range lst {
		if out[i], err = f(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func reduceImp(args []core.Value, _ core.Inputs) (core.Value, error) {
	lst, ok := core.AsList(args[0])
	if !ok {
		return nil, ast.BadArg(0, "want list, got %T", args[0])
	}
	f, err := closure(args[1], 1)
	if err != nil {
		return nil, err
	}
	acc := args[2]
	for _, e := range lst {
		partial, err := f(e)
		if err != nil {
			return nil, err
		}
		g, err := closure(partial, 1)
		if err != nil {
			return nil, err
		}
		if acc, err = g(acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
