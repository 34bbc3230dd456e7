// Package typesys implements the structural type algebra used by the
// synthesizer: nominal primitives, unification variables, parametric
// constructors and curried function types.
package typesys

import (
	"strconv"
	"strings"
)

// Type is one of Prim, Var, Param or Func.
type Type interface {
	String() string
	// Fixed reports whether the type contains no variables.
	Fixed() bool
	isType()
}

// Prim is a nominal base type such as int or string.
type Prim struct {
	Name string
}

// Var is a unification variable. Two variables with the same name but
// different instance ids are distinct instantiations of one polymorphic
// variable. ID 0 means the variable has not been instantiated yet.
type Var struct {
	Name string
	ID   int
}

// Param is a type constructor applied to arguments, e.g. list[int].
type Param struct {
	Name string
	Args []Type
}

// Func is a curried single-argument function type.
type Func struct {
	From Type
	To   Type
}

func (Prim) isType()  {}
func (Var) isType()   {}
func (Param) isType() {}
func (Func) isType()  {}

func (p Prim) String() string { return p.Name }
func (p Prim) Fixed() bool    { return true }

func (v Var) String() string {
	if v.ID == 0 {
		return v.Name
	}
	return v.Name + "." + strconv.Itoa(v.ID)
}

func (v Var) Fixed() bool { return false }

func (p Param) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte('[')
	for i, a := range p.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (p Param) Fixed() bool {
	for _, a := range p.Args {
		if !a.Fixed() {
			return false
		}
	}
	return true
}

func (f Func) String() string {
	from := f.From.String()
	if _, ok := f.From.(Func); ok {
		from = "(" + from + ")"
	}
	return from + " -> " + f.To.String()
}

func (f Func) Fixed() bool { return f.From.Fixed() && f.To.Fixed() }

// Equal compares two types structurally through their canonical form.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Contains is the occurs check: it reports whether v appears inside t.
func Contains(t Type, v Var) bool {
	switch tt := t.(type) {
	case Var:
		return tt.Name == v.Name && tt.ID == v.ID
	case Param:
		for _, a := range tt.Args {
			if Contains(a, v) {
				return true
			}
		}
	case Func:
		return Contains(tt.From, v) || Contains(tt.To, v)
	}
	return false
}

// MapVars rebuilds t with every variable replaced by f(variable). Subtrees
// without variables are returned as is.
func MapVars(t Type, f func(Var) Type) Type {
	switch tt := t.(type) {
	case Var:
		return f(tt)
	case Param:
		if tt.Fixed() {
			return tt
		}
		args := make([]Type, len(tt.Args))
		for i, a := range tt.Args {
			args[i] = MapVars(a, f)
		}
		return Param{Name: tt.Name, Args: args}
	case Func:
		if tt.Fixed() {
			return tt
		}
		return Func{From: MapVars(tt.From, f), To: MapVars(tt.To, f)}
	}
	return t
}

// WithID instantiates every uninstantiated variable in t with id.
func WithID(t Type, id int) Type {
	if t.Fixed() || id == 0 {
		return t
	}
	return MapVars(t, func(v Var) Type {
		if v.ID != 0 {
			return v
		}
		return Var{Name: v.Name, ID: id}
	})
}

// Vars returns the distinct variables of t in order of first appearance.
func Vars(t Type) []Var {
	var out []Var
	seen := map[string]bool{}
	MapVars(t, func(v Var) Type {
		if k := v.String(); !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
		return v
	})
	return out
}

// Split separates a curried function type into its first n argument types
// and the remaining return type.
func Split(t Type, n int) ([]Type, Type) {
	args := make([]Type, 0, n)
	for i := 0; i < n; i++ {
		f, ok := t.(Func)
		if !ok {
			break
		}
		args = append(args, f.From)
		t = f.To
	}
	return args, t
}

// Arrow builds args[0] -> args[1] -> ... -> ret.
func Arrow(args []Type, ret Type) Type {
	t := ret
	for i := len(args) - 1; i >= 0; i-- {
		t = Func{From: args[i], To: t}
	}
	return t
}

// Compatible is a cheap structural pre-check that ignores the current
// bindings. Variables are compatible with anything.
func Compatible(a, b Type) bool {
	if a == nil || b == nil {
		return true
	}
	if _, ok := a.(Var); ok {
		return true
	}
	if _, ok := b.(Var); ok {
		return true
	}
	switch at := a.(type) {
	case Prim:
		bt, ok := b.(Prim)
		return ok && bt.Name == at.Name
	case Param:
		bt, ok := b.(Param)
		if !ok || bt.Name != at.Name || len(bt.Args) != len(at.Args) {
			return false
		}
		for i := range at.Args {
			if !Compatible(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case Func:
		bt, ok := b.(Func)
		return ok && Compatible(at.From, bt.From) && Compatible(at.To, bt.To)
	}
	return false
}
