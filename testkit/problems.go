package testkit

import (
	"fmt"
	"sort"

	"github.com/snow-ghost/synth/core"
)

// Case pairs a problem with the language and scorer it is meant for.
type Case struct {
	Language string
	Scorer   string
	Problem  core.Problem
}

func ex(in core.Inputs, out core.Value) core.Example { return core.Example{In: in, Out: out} }

func list(xs ...int) []core.Value {
	out := make([]core.Value, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func intSpec(inputs ...string) []core.IOSpec {
	spec := make([]core.IOSpec, 0, len(inputs)+1)
	for _, in := range inputs {
		spec = append(spec, core.IOSpec{Kind: "input", Name: in, Type: "int"})
	}
	return append(spec, core.IOSpec{Kind: "output", Type: "int"})
}

// Problems is the catalogue of named problems.
var Problems = map[string]Case{
	"identity": {
		Language: "identity",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name: "identity",
			Spec: []core.IOSpec{{Kind: "input", Name: "x", Type: "float"}, {Kind: "output", Type: "float"}},
			Examples: []core.Example{
				ex(core.Inputs{"x": 1.5}, 1.5),
				ex(core.Inputs{"x": -2.0}, -2.0),
			},
			Threshold: 0.001,
			Bound:     2,
			Budget:    50,
		},
	},
	"addxy": {
		Language: "float",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name: "addxy",
			Spec: []core.IOSpec{
				{Kind: "input", Name: "x", Type: "float"},
				{Kind: "input", Name: "y", Type: "float"},
				{Kind: "output", Type: "float"},
			},
			Examples: []core.Example{
				ex(core.Inputs{"x": 1.0, "y": 2.0}, 3.0),
				ex(core.Inputs{"x": 2.0, "y": 2.0}, 4.0),
				ex(core.Inputs{"x": 5.0, "y": 5.0}, 10.0),
			},
			Threshold: 0.001,
			Bound:     2,
			Budget:    3000,
		},
	},
	"double": {
		Language: "arith",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name:      "double",
			Spec:      intSpec("x"),
			Examples:  []core.Example{ex(core.Inputs{"x": 1}, 2), ex(core.Inputs{"x": 4}, 8), ex(core.Inputs{"x": 7}, 14)},
			Threshold: 0.001,
			Bound:     3,
			Budget:    5000,
		},
	},
	"scale3": {
		Language: "affine",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name:      "scale3",
			Spec:      intSpec("x"),
			Examples:  []core.Example{ex(core.Inputs{"x": 1}, 3), ex(core.Inputs{"x": 2}, 6), ex(core.Inputs{"x": -4}, -12)},
			Threshold: 0.001,
			Bound:     2,
			Budget:    5000,
		},
	},
	"mapincrement": {
		Language: "simplmap",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name: "mapincrement",
			Spec: []core.IOSpec{{Kind: "input", Name: "x", Type: "list[int]"}, {Kind: "output", Type: "list[int]"}},
			Examples: []core.Example{
				ex(core.Inputs{"x": list(1, 2, 3)}, list(2, 3, 4)),
				ex(core.Inputs{"x": list(5, 6, 9)}, list(6, 7, 10)),
			},
			Threshold: 0.001,
			Bound:     4,
			Budget:    100000,
		},
	},
	"reducebasic": {
		Language: "simplmap",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name: "reducebasic",
			Spec: []core.IOSpec{{Kind: "input", Name: "x", Type: "list[int]"}, {Kind: "output", Type: "int"}},
			Examples: []core.Example{
				ex(core.Inputs{"x": list(1, 2, 3)}, 6),
				ex(core.Inputs{"x": list(5, 6, 9)}, 20),
				ex(core.Inputs{"x": list(7, 0, 0)}, 7),
			},
			Threshold: 0.001,
			Bound:     4,
			Budget:    100000,
		},
	},
	"prodreduce": {
		Language: "simplmap",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name: "prodreduce",
			Spec: []core.IOSpec{{Kind: "input", Name: "x", Type: "list[int]"}, {Kind: "output", Type: "int"}},
			Examples: []core.Example{
				ex(core.Inputs{"x": list(1, 2, 3)}, 6),
				ex(core.Inputs{"x": list(5, 2, 3)}, 30),
				ex(core.Inputs{"x": list(7, 0, 0)}, 0),
			},
			Threshold: 0.001,
			Bound:     4,
			Budget:    100000,
		},
	},
	"2dreduce": {
		Language: "simplmap",
		Scorer:   "numeric",
		Problem: core.Problem{
			Name: "2dreduce",
			Spec: []core.IOSpec{{Kind: "input", Name: "x", Type: "list[list[int]]"}, {Kind: "output", Type: "list[int]"}},
			Examples: []core.Example{
				ex(core.Inputs{"x": []core.Value{list(1, 2), list(3, 4)}}, list(3, 7)),
				ex(core.Inputs{"x": []core.Value{list(5, 6), list(9, 10)}}, list(11, 19)),
				ex(core.Inputs{"x": []core.Value{list(7, 0), list(1, 2, 3), list(2, 3)}}, list(7, 6, 5)),
			},
			Threshold: 0.001,
			Bound:     6,
			Budget:    100000,
		},
	},
}

// ProblemNames lists the catalogue in sorted order.
func ProblemNames() []string {
	names := make([]string, 0, len(Problems))
	for n := range Problems {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a named problem.
func Lookup(name string) (Case, error) {
	c, ok := Problems[name]
	if !ok {
		return Case{}, fmt.Errorf("unknown problem %q", name)
	}
	return c, nil
}
