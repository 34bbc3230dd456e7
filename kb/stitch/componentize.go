package stitch

import (
	"strconv"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/typesys"
)

// Component is a learned primitive and the programs rewritten to use it.
type Component struct {
	Prim      *lang.Primitive
	Programs  []ast.Node
	Instances int
}

// Name returns the first free "__foo<N>" name, starting at the language
// size.
func Name(l *lang.Language) string {
	for i := l.Len(); ; i++ {
		name := "__foo" + strconv.Itoa(i)
		if !l.Has(name) {
			return name
		}
	}
}

// Componentize mines programs for the best pattern and rewrites every
// program to call it. The returned programs are fresh trees with sites
// recomputed; the inputs are left untouched. It reports false when no
// pattern qualifies.
func Componentize(programs []ast.Node, l *lang.Language, ids *ast.IDs) (*Component, bool) {
	c := Stitch(programs, l)
	if c == nil {
		return nil, false
	}
	src, arity := ast.NumberPlugs(c.Pattern)
	name := Name(l)

	au := typesys.NewAntiunifier()
	types := make([]typesys.Type, 0, len(c.Instances))
	for _, inst := range c.Instances {
		types = append(types, instanceType(capture(src, inst, arity), inst))
	}
	prim := lang.Synthetic(name, src, typesys.Canonical(au.Fold(types)), arity)

	matched := make(map[ast.Node]bool, len(c.Instances))
	for _, inst := range c.Instances {
		matched[inst] = true
	}
	replaced := 0
	var rewrite func(ast.Node) ast.Node
	rewrite = func(n ast.Node) ast.Node {
		return ast.Replace(n, func(m ast.Node) (ast.Node, bool) {
			if !matched[m] {
				return nil, false
			}
			args := capture(src, m, arity)
			for i, a := range args {
				args[i] = rewrite(a)
			}
			call := ast.NewFun(ids.Next(), name, prim.Imp, args)
			call.Type = m.M().Type
			replaced++
			return call, true
		})
	}

	out := make([]ast.Node, len(programs))
	for i, p := range programs {
		out[i] = ast.Clone(rewrite(p))
		ast.ResetSites(out[i])
	}
	return &Component{Prim: prim, Programs: out, Instances: replaced}, true
}

// capture returns the subtrees of n sitting under the plugs of pattern,
// ordered by plug number.
func capture(pattern, n ast.Node, arity int) []ast.Node {
	args := make([]ast.Node, arity)
	var walk func(p, m ast.Node)
	walk = func(p, m ast.Node) {
		if plug, ok := p.(*ast.Plug); ok {
			args[plug.Pos] = m
			return
		}
		kids := m.Children()
		for i, pc := range p.Children() {
			walk(pc, kids[i])
		}
	}
	walk(pattern, n)
	return args
}

// instanceType is the arrow type an instance gives the component: the
// captured argument types to the instance's own type.
func instanceType(args []ast.Node, inst ast.Node) typesys.Type {
	argTypes := make([]typesys.Type, len(args))
	for i, a := range args {
		argTypes[i] = typeOrVar(a.M().Type, i)
	}
	return typesys.Arrow(argTypes, typeOrVar(inst.M().Type, len(args)))
}

func typeOrVar(t typesys.Type, i int) typesys.Type {
	if t == nil {
		return typesys.Var{Name: "ν" + strconv.Itoa(i)}
	}
	return t
}
