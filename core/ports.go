package core

// Scorer measures how far produced outputs are from the examples' targets.
// Scores live in [0,1]; 0 is a perfect match.
type Scorer interface {
	Score(examples []Example, outputs []Value) float64
}

// ScoreFunc adapts a plain function to Scorer.
type ScoreFunc func(examples []Example, outputs []Value) float64

func (f ScoreFunc) Score(examples []Example, outputs []Value) float64 {
	return f(examples, outputs)
}

// Scorers maps a scorer name to its implementation.
var Scorers = map[string]Scorer{
	"distance": ScoreFunc(Distance),
	"numeric":  ScoreFunc(NumScore),
}
