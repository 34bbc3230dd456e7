package typesys

import "fmt"

// MaxResolve bounds the nesting of binding lookups during resolution.
const MaxResolve = 20

// ResolutionError is raised (as a panic) when resolving a type needs more
// than MaxResolve nested lookups. It signals a defect in the constraint
// store, never an invalid program.
type ResolutionError struct {
	Type Type
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("type resolution exceeded %d levels for %s", MaxResolve, e.Type)
}

// Checkpoint is an opaque snapshot of a Checker's bindings.
type Checkpoint map[string]Type

// Checker is a unifier. It owns the bindings from variable keys to the
// partially resolved types they stand for.
type Checker struct {
	bindings map[string]Type
}

// NewChecker returns an empty unifier.
func NewChecker() *Checker {
	return &Checker{bindings: make(map[string]Type)}
}

// Reset drops every binding.
func (c *Checker) Reset() {
	c.bindings = make(map[string]Type)
}

// Len returns the number of bound variables.
func (c *Checker) Len() int { return len(c.bindings) }

// Bound reports whether the variable is bound.
func (c *Checker) Bound(v Var) bool {
	_, ok := c.bindings[v.String()]
	return ok
}

// Checkpoint snapshots the bindings.
func (c *Checker) Checkpoint() Checkpoint {
	cp := make(Checkpoint, len(c.bindings))
	for k, v := range c.bindings {
		cp[k] = v
	}
	return cp
}

// Revert restores a snapshot taken with Checkpoint.
func (c *Checker) Revert(cp Checkpoint) {
	c.bindings = make(map[string]Type, len(cp))
	for k, v := range cp {
		c.bindings[k] = v
	}
}

// Convert instantiates the variables of t with id and resolves them to the
// best known type. Converting a fixed type returns it unchanged.
func (c *Checker) Convert(t Type, id int) Type {
	if t == nil || t.Fixed() {
		return t
	}
	return c.resolve(WithID(t, id), MaxResolve)
}

// Resolve is Convert for types whose variables are already instantiated.
func (c *Checker) Resolve(t Type) Type {
	if t == nil || t.Fixed() {
		return t
	}
	return c.resolve(t, MaxResolve)
}

func (c *Checker) resolve(t Type, limit int) Type {
	if t.Fixed() {
		return t
	}
	if limit <= 0 {
		panic(&ResolutionError{Type: t})
	}
	return MapVars(t, func(v Var) Type {
		if b, ok := c.bindings[v.String()]; ok {
			return c.resolve(b, limit-1)
		}
		return v
	})
}

// walk follows variable aliases at the top level only.
func (c *Checker) walk(t Type) Type {
	for i := 0; i < MaxResolve; i++ {
		v, ok := t.(Var)
		if !ok {
			return t
		}
		b, ok := c.bindings[v.String()]
		if !ok {
			return t
		}
		t = b
	}
	panic(&ResolutionError{Type: t})
}

// Unify attempts to make a and b equal, recording new bindings. A false
// result may leave partial bindings behind; callers undo them with
// Checkpoint and Revert.
func (c *Checker) Unify(a, b Type) bool {
	if a == nil || b == nil {
		return true
	}
	a, b = c.walk(a), c.walk(b)
	if av, ok := a.(Var); ok {
		if bv, ok := b.(Var); ok && bv == av {
			return true
		}
		return c.bind(av, b)
	}
	if bv, ok := b.(Var); ok {
		return c.bind(bv, a)
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
			if !c.Unify(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case Func:
		bt, ok := b.(Func)
		return ok && c.Unify(at.From, bt.From) && c.Unify(at.To, bt.To)
	}
	return false
}

// Constrain unifies expected with t after instantiating t's variables
// with id. A nil expected type accepts anything.
func (c *Checker) Constrain(expected, t Type, id int) bool {
	if expected == nil {
		return true
	}
	return c.Unify(expected, WithID(t, id))
}

// bind aliases an unbound variable to t unless that would make a cycle.
func (c *Checker) bind(v Var, t Type) bool {
	resolved := c.Resolve(t)
	if Contains(resolved, v) {
		return false
	}
	if _, ok := t.(Var); ok {
		c.bindings[v.String()] = t
	} else {
		c.bindings[v.String()] = resolved
	}
	return true
}
