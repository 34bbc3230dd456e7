// Package lang describes the vocabulary a program is built from.
package lang

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/typesys"
)

// Kind selects how a primitive becomes a node.
type Kind string

const (
	KindFun    Kind = "fun"
	KindInt    Kind = "int"
	KindLambda Kind = "lambda"
	KindInput  Kind = "input"
	KindIndex  Kind = "index"
)

// IntType is the type of integer literals.
var IntType = typesys.Prim{Name: "int"}

// Primitive is one construct of a language.
type Primitive struct {
	Name string
	Kind Kind
	// Sig is the declared arrow type, e.g. "int->int->int".
	Sig string
	// Type is the structural type. For funs it is the full arrow type, split
	// into ArgTypes and Return.
	Type     typesys.Type
	ArgTypes []typesys.Type
	Return   typesys.Type

	Imp ast.Imp

	// Parametric funs build Imp from a parameter.
	ParamImp    ast.ParamImp
	ParamInit   func(r *rand.Rand) any
	ParamMorph  func(r *rand.Rand, old any) any
	DecodeParam func(raw json.RawMessage) (any, error)

	// Lo and Hi bound integer literals.
	Lo, Hi int

	// Idx is the de Bruijn index of a bound variable construct.
	Idx int

	// Pos is the position in the language; it is stable for the lifetime of
	// a run and keys round robin selection.
	Pos int

	// Synthetic primitives were learned; Source is their body with plugs.
	Synthetic bool
	Source    ast.Node
}

// Arity is the number of arguments a fun takes.
func (p *Primitive) Arity() int { return len(p.ArgTypes) }

// Parametric reports whether the primitive is built from a parameter.
func (p *Primitive) Parametric() bool { return p.ParamImp != nil }

// Label matches ast.Label for nodes built from this primitive.
func (p *Primitive) Label() string {
	switch p.Kind {
	case KindFun:
		return "fun/" + p.Name
	case KindInput:
		return "input/" + p.Name
	}
	return string(p.Kind)
}

// Language is an ordered set of primitives. Positions are indexes into it.
type Language struct {
	prims  []*Primitive
	byName map[string]*Primitive
}

// New normalizes declared primitives: type strings become structural types,
// fun types are split into arguments and return type, inputs from the IO spec
// are appended and positions are assigned. The declarations are copied.
func New(decls []*Primitive, spec []core.IOSpec) (*Language, error) {
	l := &Language{byName: map[string]*Primitive{}}
	for _, d := range decls {
		p := *d
		switch p.Kind {
		case KindFun:
			if err := p.normalizeFun(); err != nil {
				return nil, err
			}
			if p.Imp == nil && p.ParamImp == nil {
				return nil, fmt.Errorf("primitive %s has no implementation", p.Name)
			}
			if p.ParamImp != nil && p.ParamInit == nil {
				return nil, fmt.Errorf("parametric primitive %s has no initializer", p.Name)
			}
		case KindInt:
			if p.Lo > p.Hi {
				return nil, fmt.Errorf("primitive %s has empty range [%d, %d]", p.Name, p.Lo, p.Hi)
			}
			p.Type = IntType
		case KindLambda:
		default:
			return nil, fmt.Errorf("primitive %s has unsupported kind %q", p.Name, p.Kind)
		}
		l.Add(&p)
	}
	inputs, _ := core.SplitSpec(spec)
	for _, in := range inputs {
		t, err := typesys.Parse(in.Type)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.Name, err)
		}
		l.Add(&Primitive{Name: in.Name, Kind: KindInput, Sig: in.Type, Type: t})
	}
	return l, nil
}

func (p *Primitive) normalizeFun() error {
	if p.Type == nil {
		t, err := typesys.Parse(p.Sig)
		if err != nil {
			return fmt.Errorf("primitive %s: %w", p.Name, err)
		}
		p.Type = t
	}
	if p.ArgTypes == nil {
		n := 0
		if p.Sig != "" {
			n = typesys.Arity(p.Sig)
		} else {
			for t := p.Type; ; n++ {
				f, ok := t.(typesys.Func)
				if !ok {
					break
				}
				t = f.To
			}
		}
		p.ArgTypes, p.Return = typesys.Split(p.Type, n)
	}
	if p.Return == nil {
		_, p.Return = typesys.Split(p.Type, len(p.ArgTypes))
	}
	return nil
}

// Add appends a primitive and assigns its position.
func (l *Language) Add(p *Primitive) {
	p.Pos = len(l.prims)
	l.prims = append(l.prims, p)
	if p.Kind == KindFun {
		l.byName[p.Name] = p
	}
}

// Len is the number of primitives.
func (l *Language) Len() int { return len(l.prims) }

// At returns the primitive at position i.
func (l *Language) At(i int) *Primitive { return l.prims[i] }

// Prims returns the primitives in position order.
func (l *Language) Prims() []*Primitive { return l.prims }

// Fun returns the fun primitive with the given name.
func (l *Language) Fun(name string) (*Primitive, bool) {
	p, ok := l.byName[name]
	return p, ok
}

// Has reports whether a fun with that name exists.
func (l *Language) Has(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// Lookup implements ast.Library.
func (l *Language) Lookup(name string) (ast.Binding, bool) {
	p, ok := l.byName[name]
	if !ok {
		return ast.Binding{}, false
	}
	return ast.Binding{Imp: p.Imp, ParamImp: p.ParamImp, DecodeParam: p.DecodeParam}, true
}

// Clone returns a language that can be extended without affecting l.
func (l *Language) Clone() *Language {
	cp := &Language{prims: make([]*Primitive, len(l.prims)), byName: make(map[string]*Primitive, len(l.byName))}
	copy(cp.prims, l.prims)
	for k, v := range l.byName {
		cp.byName[k] = v
	}
	return cp
}

// Synthetic builds the descriptor of a learned component. src must have
// its plugs numbered; typ is the full arrow type.
func Synthetic(name string, src ast.Node, typ typesys.Type, arity int) *Primitive {
	args, ret := typesys.Split(typ, arity)
	return &Primitive{
		Name:      name,
		Kind:      KindFun,
		Sig:       typ.String(),
		Type:      typ,
		ArgTypes:  args,
		Return:    ret,
		Imp:       ast.Compile(src),
		Synthetic: true,
		Source:    src,
	}
}
