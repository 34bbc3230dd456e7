package typesys

import "strconv"

// Antiunifier computes least general generalizations. Every distinct pair
// of disagreeing subterms maps to the same fresh variable across calls, so
// a signature antiunified argument by argument stays consistent.
type Antiunifier struct {
	pairs map[string]Var
	used  map[string]bool
}

// NewAntiunifier returns an Antiunifier with no allocated variables.
func NewAntiunifier() *Antiunifier {
	return &Antiunifier{pairs: map[string]Var{}, used: map[string]bool{}}
}

// Generalize returns the most specific type that both a and b instantiate.
func (au *Antiunifier) Generalize(a, b Type) Type {
	if Equal(a, b) {
		return a
	}
	switch at := a.(type) {
	case Prim:
		if bt, ok := b.(Prim); ok && bt.Name == at.Name {
			return a
		}
	case Param:
		if bt, ok := b.(Param); ok && bt.Name == at.Name && len(bt.Args) == len(at.Args) {
			args := make([]Type, len(at.Args))
			for i := range at.Args {
				args[i] = au.Generalize(at.Args[i], bt.Args[i])
			}
			return Param{Name: at.Name, Args: args}
		}
	case Func:
		if bt, ok := b.(Func); ok {
			return Func{From: au.Generalize(at.From, bt.From), To: au.Generalize(at.To, bt.To)}
		}
	}
	key := a.String() + "|" + b.String()
	if v, ok := au.pairs[key]; ok {
		return v
	}
	v := au.fresh()
	au.pairs[key] = v
	return v
}

// Fold generalizes a whole list of types.
func (au *Antiunifier) Fold(ts []Type) Type {
	if len(ts) == 0 {
		return nil
	}
	acc := ts[0]
	for _, t := range ts[1:] {
		acc = au.Generalize(acc, t)
	}
	return acc
}

func (au *Antiunifier) fresh() Var {
	for _, g := range greekNames {
		if !au.used[g] {
			au.used[g] = true
			return Var{Name: g}
		}
	}
	for i := 1; ; i++ {
		name := "τ" + strconv.Itoa(i)
		if !au.used[name] {
			au.used[name] = true
			return Var{Name: name}
		}
	}
}

// Reserve marks a variable name as taken.
func (au *Antiunifier) Reserve(name string) { au.used[name] = true }

// Canonical renames every variable of t (including instantiated ones) to
// uninstantiated greek variables, in order of appearance.
func Canonical(t Type) Type {
	if t == nil || t.Fixed() {
		return t
	}
	names := map[string]Var{}
	au := NewAntiunifier()
	return MapVars(t, func(v Var) Type {
		k := v.String()
		if nv, ok := names[k]; ok {
			return nv
		}
		nv := au.fresh()
		names[k] = nv
		return nv
	})
}
