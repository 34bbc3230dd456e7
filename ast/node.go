// Package ast holds the program representation: a closed set of node
// variants with cached depth and size, evaluation, rewriting and a JSON
// codec.
package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/typesys"
)

// Imp is the implementation of a primitive. Implementations report a bad
// argument by returning an *ArgError.
type Imp func(args []core.Value, in core.Inputs) (core.Value, error)

// ParamImp builds an implementation from a tunable parameter.
type ParamImp func(param any) Imp

// Node is one of *Fun, *Lambda, *Input, *IntLit, *Index, *Hole or *Plug.
// Nodes are immutable by convention: edits build new nodes because
// subtrees are shared between beam members.
type Node interface {
	M() *Meta
	Children() []Node
	String() string
	isNode()
}

// Meta is carried by every node.
type Meta struct {
	ID    int
	Type  typesys.Type
	Depth int
	Size  int
	// Site is the search context the node was generated in; ChildSite is
	// the context a leaf hands to its (absent) children. Both feed reward
	// attribution.
	Site      *Site
	ChildSite *Site
}

func (m *Meta) M() *Meta { return m }

// Fun applies a primitive to its arguments. A parametric Fun carries the
// parameter and the generator its Imp was built from.
type Fun struct {
	Meta
	Name     string
	Imp      Imp
	Args     []Node
	Param    any
	ParamImp ParamImp
}

// Lambda is a single argument anonymous function. Its body refers to the
// argument as Index 0.
type Lambda struct {
	Meta
	Body Node
}

// Input reads a named synthesis input.
type Input struct {
	Meta
	Name string
}

// IntLit is an integer constant drawn from the inclusive range [Lo, Hi].
type IntLit struct {
	Meta
	Val    int
	Lo, Hi int
}

// Index is a de Bruijn reference, counted outward from the nearest
// enclosing Lambda.
type Index struct {
	Meta
	Idx int
}

// Hole is a placeholder used while growing library patterns.
type Hole struct {
	Meta
}

// Plug is argument slot Pos of an extracted component.
type Plug struct {
	Meta
	Pos int
}

func (*Fun) isNode()    {}
func (*Lambda) isNode() {}
func (*Input) isNode()  {}
func (*IntLit) isNode() {}
func (*Index) isNode()  {}
func (*Hole) isNode()   {}
func (*Plug) isNode()   {}

func (f *Fun) Children() []Node    { return f.Args }
func (l *Lambda) Children() []Node { return []Node{l.Body} }
func (*Input) Children() []Node    { return nil }
func (*IntLit) Children() []Node   { return nil }
func (*Index) Children() []Node    { return nil }
func (*Hole) Children() []Node     { return nil }
func (*Plug) Children() []Node     { return nil }

// Parametric reports whether the Fun was built from a parameter.
func (f *Fun) Parametric() bool { return f.ParamImp != nil }

func (f *Fun) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	if f.Parametric() {
		fmt.Fprintf(&b, "[%v]", f.Param)
	}
	b.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (l *Lambda) String() string { return "(λ" + l.Body.String() + ")" }
func (i *Input) String() string  { return i.Name }
func (n *IntLit) String() string { return strconv.Itoa(n.Val) }
func (x *Index) String() string  { return "$" + strconv.Itoa(x.Idx) }
func (*Hole) String() string     { return "□" }
func (*Plug) String() string     { return "#" }

// IDs hands out node identifiers. Each search instance owns one, so there
// is no shared counter between concurrent runs.
type IDs struct {
	last int
}

// Next returns a fresh identifier. Identifiers start at 1.
func (g *IDs) Next() int {
	g.last++
	return g.last
}

// Observe makes sure future identifiers are larger than id.
func (g *IDs) Observe(id int) {
	if id > g.last {
		g.last = id
	}
}

// NewFun builds a Fun and computes its depth and size.
func NewFun(id int, name string, imp Imp, args []Node) *Fun {
	f := &Fun{Meta: Meta{ID: id}, Name: name, Imp: imp, Args: args}
	Measure(f)
	return f
}

// NewParamFun builds a parametric Fun.
func NewParamFun(id int, name string, pimp ParamImp, param any, args []Node) *Fun {
	f := &Fun{Meta: Meta{ID: id}, Name: name, Imp: pimp(param), Args: args, Param: param, ParamImp: pimp}
	Measure(f)
	return f
}

func NewLambda(id int, body Node) *Lambda {
	l := &Lambda{Meta: Meta{ID: id}, Body: body}
	Measure(l)
	return l
}

func NewInput(id int, name string) *Input {
	return &Input{Meta: Meta{ID: id, Size: 1}, Name: name}
}

func NewInt(id, val, lo, hi int) *IntLit {
	return &IntLit{Meta: Meta{ID: id, Size: 1}, Val: val, Lo: lo, Hi: hi}
}

func NewIndex(id, idx int) *Index {
	return &Index{Meta: Meta{ID: id, Size: 1}, Idx: idx}
}

func NewHole() *Hole { return &Hole{} }

func NewPlug(pos int) *Plug { return &Plug{Pos: pos} }

// Measure recomputes the cached depth and size of n from its children.
// Holes and plugs have size 0; every other node counts 1.
func Measure(n Node) {
	m := n.M()
	switch n.(type) {
	case *Hole, *Plug:
		m.Depth, m.Size = 0, 0
		return
	}
	depth, size := 0, 1
	for _, c := range n.Children() {
		depth = max(depth, c.M().Depth+1)
		size += c.M().Size
	}
	m.Depth, m.Size = depth, size
}

// MeasureAll recomputes depth and size bottom up over the whole tree.
func MeasureAll(n Node) {
	for _, c := range n.Children() {
		MeasureAll(c)
	}
	Measure(n)
}

// Label names the construct a node came from, as used for search
// statistics: "fun/<name>", "input/<name>", "int", "lambda", "index",
// "hole" or "plug".
func Label(n Node) string {
	switch x := n.(type) {
	case *Fun:
		return "fun/" + x.Name
	case *Input:
		return "input/" + x.Name
	case *IntLit:
		return "int"
	case *Lambda:
		return "lambda"
	case *Index:
		return "index"
	case *Hole:
		return "hole"
	case *Plug:
		return "plug"
	}
	return ""
}
