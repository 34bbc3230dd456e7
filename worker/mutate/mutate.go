// Package mutate produces nearby variants of a program.
package mutate

import (
	"errors"
	"fmt"
	"math"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/typesys"
	"github.com/snow-ghost/synth/worker/gen"
)

// MaxRetries caps how many times a mutation is retried with a growing
// replacement probability before giving up.
const MaxRetries = 64

// ErrUnchanged is returned when no retry produced a different program.
var ErrUnchanged = errors.New("mutation left the program unchanged")

// Mutator rewrites programs by descending to a random node and either
// regenerating it or tweaking it in place.
type Mutator struct {
	Gen *gen.Generator
}

func NewMutator(g *gen.Generator) *Mutator { return &Mutator{Gen: g} }

// Mutate returns a program different from prog. Deeper nodes are reached
// with probability that falls with bound; each unsuccessful attempt makes
// replacement more likely. The input is never modified and unchanged
// subtrees are shared.
func (m *Mutator) Mutate(prog ast.Node, bound int) (ast.Node, error) {
	pbound := math.Pow(1.5, -float64(bound))
	for attempt := 0; attempt < MaxRetries; attempt++ {
		m.Gen.Checker.Reset()
		out := m.traverse(prog, bound, nil, prog.M().Type, pbound)
		if out != prog {
			return out, nil
		}
		pbound *= 1.5
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrUnchanged, MaxRetries)
}

func (m *Mutator) traverse(n ast.Node, bound int, extras []*lang.Primitive, expected typesys.Type, pbound float64) ast.Node {
	g := m.Gen
	if g.Rand.Float64() <= pbound {
		return m.regenerate(n, bound, extras, expected)
	}
	switch x := n.(type) {
	case *ast.Fun:
		if out := m.morph(x); out != nil {
			return out
		}
		if len(x.Args) > 0 {
			choice := g.Rand.Intn(len(x.Args))
			arg := x.Args[choice]
			repl := m.traverse(arg, bound-1, extras, arg.M().Type, pbound)
			if repl != arg {
				args := make([]ast.Node, len(x.Args))
				copy(args, x.Args)
				args[choice] = repl
				return m.rebuild(x, x.Param, args, expected)
			}
		}
		return m.regenerate(n, bound, extras, expected)
	case *ast.Lambda:
		var from typesys.Type
		if ft, ok := x.Type.(typesys.Func); ok {
			from = ft.From
		}
		inner := gen.Shift(extras, from, g.Lang.Len())
		body := m.traverse(x.Body, bound-1, inner, x.Body.M().Type, pbound)
		if body == x.Body {
			return m.regenerate(n, bound, extras, expected)
		}
		lam := ast.NewLambda(g.IDs.Next(), body)
		lam.Site = x.Site
		lam.Type = expected
		return lam
	case *ast.IntLit:
		if x.Lo == x.Hi {
			return n
		}
		val := x.Val
		for val == x.Val {
			val = x.Lo + g.Rand.Intn(x.Hi-x.Lo+1)
		}
		lit := ast.NewInt(g.IDs.Next(), val, x.Lo, x.Hi)
		lit.Site, lit.ChildSite = x.Site, x.ChildSite
		lit.Type = expected
		return lit
	}
	return n
}

// morph gives a parametric fun a new parameter half of the time.
func (m *Mutator) morph(f *ast.Fun) ast.Node {
	if !f.Parametric() {
		return nil
	}
	p, ok := m.Gen.Lang.Fun(f.Name)
	if !ok || p.ParamMorph == nil || m.Gen.Rand.Intn(2) == 0 {
		return nil
	}
	param := p.ParamMorph(m.Gen.Rand, f.Param)
	if fmt.Sprint(param) == fmt.Sprint(f.Param) {
		return nil
	}
	return m.rebuild(f, param, f.Args, f.Type)
}

func (m *Mutator) rebuild(f *ast.Fun, param any, args []ast.Node, expected typesys.Type) *ast.Fun {
	id := m.Gen.IDs.Next()
	var out *ast.Fun
	if f.Parametric() {
		out = ast.NewParamFun(id, f.Name, f.ParamImp, param, args)
	} else {
		out = ast.NewFun(id, f.Name, f.Imp, args)
	}
	out.Site, out.ChildSite = f.Site, f.ChildSite
	out.Type = expected
	if out.Type == nil {
		out.Type = f.Type
	}
	return out
}

// regenerate replaces n with a fresh subtree of the same type built in
// the same context, or returns n when that fails or yields an equal tree.
func (m *Mutator) regenerate(n ast.Node, bound int, extras []*lang.Primitive, expected typesys.Type) ast.Node {
	site := n.M().Site
	if site == nil {
		site = ast.StartSite()
	}
	out, fail := m.Gen.Random(expected, bound, extras, site, bound)
	if fail != nil || ast.Equal(out, n) {
		return n
	}
	return out
}
