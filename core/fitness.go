package core

import "math"

type valueKind int

const (
	kindOther valueKind = iota
	kindNumber
	kindString
	kindBool
	kindList
	kindFunc
)

func kindOf(v Value) valueKind {
	if _, ok := AsFloat(v); ok {
		return kindNumber
	}
	switch v.(type) {
	case string:
		return kindString
	case bool:
		return kindBool
	case []Value:
		return kindList
	case Closure:
		return kindFunc
	}
	return kindOther
}

// Distance is the default structural scorer. Each output contributes a
// distance in [0,100]: 100 for a type mismatch, the average element
// distance for lists (missing elements count 100) and 0 or 50 for equal or
// different scalars. The result is the mean over outputs, divided by 100.
func Distance(examples []Example, outputs []Value) float64 {
	if len(outputs) == 0 {
		return 0
	}
	total := 0.0
	for i, out := range outputs {
		total += distance(examples[i].Out, out) / 100
	}
	return total / float64(len(outputs))
}

func distance(want, got Value) float64 {
	kw, kg := kindOf(want), kindOf(got)
	if kw != kg {
		return 100
	}
	if kw == kindList {
		lw, lg := want.([]Value), got.([]Value)
		short, long := len(lw), len(lg)
		if short > long {
			short, long = long, short
		}
		if long == 0 {
			return 0
		}
		total := 0.0
		for i := 0; i < short; i++ {
			total += distance(lw[i], lg[i])
		}
		total += float64(long-short) * 100
		return total / float64(long)
	}
	if SameValue(want, got) {
		return 0
	}
	return 50
}

// NumScore is meant for (nested lists of) numbers. Both sides are
// flattened; the score mixes the fraction of mismatched positions (0.8)
// with the fraction of neighbouring positions whose direction of change
// disagrees (0.2).
func NumScore(examples []Example, outputs []Value) float64 {
	var want, got []Value
	var flatten func(w, g Value)
	flatten = func(w, g Value) {
		kw, kg := kindOf(w), kindOf(g)
		if kw != kg {
			want, got = append(want, missing{}), append(got, missing{})
			return
		}
		if kw == kindList {
			lw, lg := w.([]Value), g.([]Value)
			n := min(len(lw), len(lg))
			for i := 0; i < n; i++ {
				flatten(lw[i], lg[i])
			}
			for i := n; i < max(len(lw), len(lg)); i++ {
				want, got = append(want, missing{}), append(got, missing{})
			}
			return
		}
		want, got = append(want, w), append(got, g)
	}
	for i, out := range outputs {
		flatten(examples[i].Out, out)
	}

	n := len(want)
	if n == 0 {
		return 0
	}
	hamming, deriv := 0, 0
	for i := 0; i < n; i++ {
		if _, ok := want[i].(missing); ok || !SameValue(want[i], got[i]) {
			hamming++
		}
		if i == 0 {
			continue
		}
		if _, ok := want[i].(missing); ok {
			continue
		}
		if _, ok := want[i-1].(missing); ok {
			continue
		}
		if !sameDirection(want[i-1], want[i], got[i-1], got[i]) {
			deriv++
		}
	}
	score := 0.8 * float64(hamming) / float64(n)
	if n > 1 {
		score += 0.2 * float64(deriv) / float64(n-1)
	}
	return score
}

type missing struct{}

func sameDirection(prevW, curW, prevG, curG Value) bool {
	pw, ok1 := AsFloat(prevW)
	cw, ok2 := AsFloat(curW)
	pg, ok3 := AsFloat(prevG)
	cg, ok4 := AsFloat(curG)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}
	return sign(cw-pw) == sign(cg-pg)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	case math.IsNaN(x):
		return math.NaN()
	}
	return 0
}
