package ast

import (
	"errors"
	"fmt"

	"github.com/snow-ghost/synth/core"
)

// ArgError is returned by an implementation when argument Arg holds a
// value it cannot work with.
type ArgError struct {
	Arg    int
	Reason string
}

func (e *ArgError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("bad argument %d", e.Arg)
	}
	return fmt.Sprintf("bad argument %d: %s", e.Arg, e.Reason)
}

// BadArg builds an *ArgError.
func BadArg(arg int, format string, args ...any) error {
	return &ArgError{Arg: arg, Reason: fmt.Sprintf(format, args...)}
}

// BadResult localizes an evaluation anomaly: child ChildIdx of Main
// produced an unusable value, Main being argument ParentIdx of Parent.
// Parent is nil when Main is the program root.
type BadResult struct {
	Parent    Node
	ParentIdx int
	Main      Node
	ChildIdx  int
}

func (b *BadResult) Error() string {
	parent := "<root>"
	if b.Parent != nil {
		parent = b.Parent.String()
	}
	return fmt.Sprintf("bad result: argument %d of %s (argument %d of %s)", b.ChildIdx, b.Main, b.ParentIdx, parent)
}

// Env is a persistent list of bound values; the head is de Bruijn index 0.
type Env struct {
	val  core.Value
	next *Env
}

// Push returns a new environment with v bound to index 0.
func (e *Env) Push(v core.Value) *Env {
	return &Env{val: v, next: e}
}

// At looks up de Bruijn index i.
func (e *Env) At(i int) (core.Value, bool) {
	for cur := e; cur != nil; cur = cur.next {
		if i == 0 {
			return cur.val, true
		}
		i--
	}
	return nil, false
}

// Eval runs a complete program on one set of inputs.
func Eval(n Node, in core.Inputs) (core.Value, error) {
	v, err := eval(n, in, nil, nil)
	if err != nil {
		var ae *ArgError
		if errors.As(err, &ae) {
			return nil, &BadResult{ParentIdx: -1, Main: n, ChildIdx: ae.Arg}
		}
		return nil, err
	}
	return v, nil
}

func eval(n Node, in core.Inputs, env *Env, plugs []core.Value) (core.Value, error) {
	switch x := n.(type) {
	case *Fun:
		vals := make([]core.Value, len(x.Args))
		for i, a := range x.Args {
			v, err := eval(a, in, env, plugs)
			if err != nil {
				return nil, localize(err, x, i, a)
			}
			vals[i] = v
		}
		return x.Imp(vals, in)
	case *Lambda:
		return core.Closure(func(arg core.Value) (core.Value, error) {
			v, err := eval(x.Body, in, env.Push(arg), plugs)
			if err != nil {
				return nil, localize(err, x, -1, x.Body)
			}
			return v, nil
		}), nil
	case *Input:
		v, ok := in[x.Name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", x.Name)
		}
		return v, nil
	case *IntLit:
		return x.Val, nil
	case *Index:
		v, ok := env.At(x.Idx)
		if !ok {
			return nil, fmt.Errorf("unbound index $%d", x.Idx)
		}
		return v, nil
	case *Plug:
		if x.Pos < 0 || x.Pos >= len(plugs) {
			return nil, fmt.Errorf("plug %d without argument", x.Pos)
		}
		return plugs[x.Pos], nil
	case *Hole:
		return nil, errors.New("cannot evaluate a hole")
	}
	return nil, fmt.Errorf("unknown node %T", n)
}

// localize turns an implementation's ArgError into a BadResult naming
// the node that produced it. BadResults and other errors pass through.
func localize(err error, parent Node, idx int, child Node) error {
	var br *BadResult
	if errors.As(err, &br) {
		return err
	}
	var ae *ArgError
	if errors.As(err, &ae) {
		return &BadResult{Parent: parent, ParentIdx: idx, Main: child, ChildIdx: ae.Arg}
	}
	return err
}

// Compile turns a component body into an implementation. Plug k reads
// argument k; inputs are read from the caller's inputs.
func Compile(src Node) Imp {
	return func(args []core.Value, in core.Inputs) (core.Value, error) {
		return eval(src, in, nil, args)
	}
}
