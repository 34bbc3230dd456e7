package core

import (
	"fmt"
	"math"
)

// SplitSpec separates input declarations from the output declaration.
// The output is nil when the IO spec does not declare one.
func SplitSpec(spec []IOSpec) (inputs []IOSpec, output *IOSpec) {
	for i := range spec {
		switch spec[i].Kind {
		case "input":
			inputs = append(inputs, spec[i])
		case "output":
			if output == nil {
				output = &spec[i]
			}
		}
	}
	return inputs, output
}

// AsFloat converts any numeric value to float64.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// AsInt converts a numeric value to int when it holds an integer.
func AsInt(v Value) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

// AsList converts a value to a list.
func AsList(v Value) ([]Value, bool) {
	l, ok := v.([]Value)
	return l, ok
}

// SameValue compares values structurally. Numbers compare by value
// regardless of their Go representation.
func SameValue(a, b Value) bool {
	if fa, ok := AsFloat(a); ok {
		fb, ok := AsFloat(b)
		return ok && fa == fb
	}
	la, aok := a.([]Value)
	lb, bok := b.([]Value)
	if aok || bok {
		if !aok || !bok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !SameValue(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	switch a.(type) {
	case string, bool, nil:
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Normalize converts decoded JSON values ([]any, float64) into the runtime
// representation used by primitives. Integral numbers become int.
func Normalize(v any) Value {
	switch x := v.(type) {
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case float64:
		if n, ok := AsInt(x); ok && math.Abs(x) < 1<<53 {
			return n
		}
		return x
	}
	return v
}

// NormalizeExamples applies Normalize to every input and output.
func NormalizeExamples(examples []Example) []Example {
	out := make([]Example, len(examples))
	for i, e := range examples {
		in := make(Inputs, len(e.In))
		for k, v := range e.In {
			in[k] = Normalize(v)
		}
		out[i] = Example{In: in, Out: Normalize(e.Out)}
	}
	return out
}
