// Package gen builds random well-typed programs, guided by search
// statistics.
package gen

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/stats"
	"github.com/snow-ghost/synth/typesys"
)

// MaxRootAttempts caps the retries made at the top of a generation call.
const MaxRootAttempts = 1000

// Failure reports that no program could be built. Blame is the distance
// from the failing construct: 0 means the request itself is
// unsatisfiable, larger values mean a retry may succeed.
type Failure struct {
	Blame int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("no program found (blame %d)", f.Blame)
}

// Generator holds everything a generation call threads through.
type Generator struct {
	Lang    *lang.Language
	Tracker *stats.Tracker
	Checker *typesys.Checker
	Rand    *rand.Rand
	IDs     *ast.IDs
}

// Generate builds a fresh program of the expected type within bound. The
// checker is reset first. A nil expected type accepts any type.
func (g *Generator) Generate(expected typesys.Type, bound int) (ast.Node, error) {
	g.Checker.Reset()
	n, fail := g.Random(expected, bound, nil, ast.StartSite(), bound)
	if fail != nil {
		return nil, fail
	}
	return n, nil
}

// Random builds a node of the expected type. extras are the bound variable
// constructs in scope, site the search context and initialBound the bound
// of the outermost call, where retries are unconditional.
func (g *Generator) Random(expected typesys.Type, bound int, extras []*lang.Primitive, site *ast.Site, initialBound int) (ast.Node, *Failure) {
	construct := g.Tracker.RandomConstruct(site, g.Lang, extras)
	if construct == nil {
		return nil, &Failure{}
	}
	initial := construct.Pos

	excluded := func(c *lang.Primitive) bool {
		return bound <= 0 && (c.Kind == lang.KindLambda || c.Kind == lang.KindFun && c.Arity() > 0)
	}
	advance := func() {
		for construct != nil && (excluded(construct) || !g.checkStep(construct, expected)) {
			construct = g.Tracker.NextConstruct(construct, initial, g.Lang, extras)
		}
	}
	advance()

	cp := g.Checker.Checkpoint()
	pbound := 1 / math.Pow(2, float64(bound))
	attempts := 0
	for construct != nil {
		attempts++
		out, fail := g.flesh(construct, expected, bound, extras, site, initialBound)
		if fail == nil {
			g.finish(out, expected)
			return out, nil
		}
		g.Checker.Revert(cp)
		if fail.Blame == 0 {
			construct = g.Tracker.NextConstruct(construct, initial, g.Lang, extras)
			advance()
			continue
		}
		retry := bound == initialBound && attempts < MaxRootAttempts ||
			g.Rand.Float64() > pbound && attempts < 5
		if !retry {
			return nil, &Failure{Blame: fail.Blame + 1}
		}
		construct = g.Tracker.RandomConstruct(site, g.Lang, extras)
		initial = construct.Pos
		advance()
	}
	return nil, &Failure{}
}

// checkStep is a cheap filter applied before a construct is fleshed out.
func (g *Generator) checkStep(c *lang.Primitive, expected typesys.Type) bool {
	if expected == nil {
		return true
	}
	exp := g.Checker.Resolve(expected)
	switch c.Kind {
	case lang.KindLambda:
		_, ok := exp.(typesys.Func)
		return ok
	case lang.KindFun:
		return typesys.Compatible(exp, c.Return)
	}
	if c.Type != nil {
		return typesys.Compatible(exp, c.Type)
	}
	return true
}

func (g *Generator) flesh(c *lang.Primitive, expected typesys.Type, bound int, extras []*lang.Primitive, site *ast.Site, initialBound int) (ast.Node, *Failure) {
	switch c.Kind {
	case lang.KindFun:
		return g.fleshFun(c, expected, bound, extras, site, initialBound)
	case lang.KindInt:
		id := g.IDs.Next()
		lit := ast.NewInt(id, c.Lo+g.Rand.Intn(c.Hi-c.Lo+1), c.Lo, c.Hi)
		lit.Site = site
		lit.ChildSite = site.Child(c.Label(), 0)
		if !g.Checker.Constrain(expected, lang.IntType, id) {
			return nil, &Failure{}
		}
		return lit, nil
	case lang.KindLambda:
		return g.fleshLambda(expected, bound, extras, site, initialBound)
	case lang.KindInput:
		if !g.Checker.Constrain(expected, c.Type, 0) {
			return nil, &Failure{}
		}
		in := ast.NewInput(g.IDs.Next(), c.Name)
		in.Site = site
		in.ChildSite = site.Child(c.Label(), 0)
		return in, nil
	case lang.KindIndex:
		id := g.IDs.Next()
		if !g.Checker.Constrain(expected, c.Type, id) {
			return nil, &Failure{}
		}
		x := ast.NewIndex(id, c.Idx)
		x.Site = site
		x.ChildSite = site.Child(c.Label(), 0)
		return x, nil
	}
	return nil, &Failure{}
}

func (g *Generator) fleshFun(c *lang.Primitive, expected typesys.Type, bound int, extras []*lang.Primitive, site *ast.Site, initialBound int) (ast.Node, *Failure) {
	id := g.IDs.Next()
	var f *ast.Fun
	if c.Parametric() {
		f = ast.NewParamFun(id, c.Name, c.ParamImp, c.ParamInit(g.Rand), nil)
	} else {
		f = ast.NewFun(id, c.Name, c.Imp, nil)
	}
	if !g.Checker.Constrain(expected, c.Return, id) {
		return nil, &Failure{}
	}
	f.Site = site
	label := c.Label()
	if c.Arity() == 0 {
		f.ChildSite = site.Child(label, 0)
	}
	args := make([]ast.Node, 0, c.Arity())
	for i, at := range c.ArgTypes {
		arg, fail := g.Random(g.Checker.Convert(at, id), bound-1, extras, site.Child(label, i), initialBound)
		if fail != nil {
			if i == 0 && fail.Blame == 0 {
				return nil, fail
			}
			return nil, &Failure{Blame: fail.Blame + 1}
		}
		args = append(args, arg)
	}
	f.Args = args
	if expected == nil {
		f.Type = g.Checker.Convert(c.Return, id)
	}
	return f, nil
}

func (g *Generator) fleshLambda(expected typesys.Type, bound int, extras []*lang.Primitive, site *ast.Site, initialBound int) (ast.Node, *Failure) {
	if expected == nil {
		return nil, &Failure{}
	}
	ft, ok := g.Checker.Resolve(expected).(typesys.Func)
	if !ok {
		return nil, &Failure{}
	}
	lam := ast.NewLambda(g.IDs.Next(), ast.NewHole())
	lam.Site = site
	inner := Shift(extras, ft.From, g.Lang.Len())
	body, fail := g.Random(ft.To, bound-1, inner, site.Child("lambda", 0), initialBound)
	if fail != nil {
		return nil, fail
	}
	lam.Body = body
	return lam, nil
}

// Shift returns the bound variable constructs seen inside a new lambda
// whose argument has type from: every index moves out by one and index 0
// is the new argument. Positions follow the language.
func Shift(extras []*lang.Primitive, from typesys.Type, langLen int) []*lang.Primitive {
	k := len(extras)
	out := make([]*lang.Primitive, 0, k+1)
	for i, e := range extras {
		out = append(out, indexConstruct(k-i, e.Type, e.Pos))
	}
	return append(out, indexConstruct(0, from, langLen+k))
}

func indexConstruct(idx int, t typesys.Type, pos int) *lang.Primitive {
	return &lang.Primitive{Name: "$" + strconv.Itoa(idx), Kind: lang.KindIndex, Idx: idx, Type: t, Pos: pos}
}

// finish assigns the final type and refreshes cached measurements.
func (g *Generator) finish(n ast.Node, expected typesys.Type) {
	if expected != nil {
		n.M().Type = expected
	}
	g.ConvertTypes(n)
	ast.Measure(n)
}

// ConvertTypes resolves the types of a freshly built subtree against the
// current bindings.
func (g *Generator) ConvertTypes(n ast.Node) {
	m := n.M()
	if m.Type != nil {
		m.Type = g.Checker.Convert(m.Type, m.ID)
	}
	for _, c := range n.Children() {
		g.ConvertTypes(c)
	}
}
