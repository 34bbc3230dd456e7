package core

import (
	"encoding/json"
	"fmt"
)

// Value is any runtime value a program manipulates: numbers (int or
// float64), strings, bools, []Value lists and function values.
type Value = any

// Closure is the runtime value of a lambda.
type Closure func(Value) (Value, error)

// Inputs maps input names to the values bound for one example.
type Inputs map[string]Value

// Example is one input/output pair.
type Example struct {
	In  Inputs `json:"in"`
	Out Value  `json:"out"`
}

// IOSpec declares the type of a named input or of the output.
type IOSpec struct {
	Kind string `json:"kind" yaml:"kind" validate:"oneof=input output"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type string `json:"type" yaml:"type" validate:"required"`
}

// Status is the outcome of a synthesis run.
type Status string

const (
	StatusCorrect   Status = "CORRECT"
	StatusIncorrect Status = "INCORRECT"
)

// Problem bundles everything a synthesis request needs besides the language
// and the scorer.
type Problem struct {
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Spec      []IOSpec  `json:"inputspec" yaml:"intypes" validate:"required,dive"`
	Examples  []Example `json:"examples" yaml:"io" validate:"required,min=1"`
	Threshold float64   `json:"threshold" yaml:"threshold" validate:"gte=0,lte=1"`
	Bound     int       `json:"bound" yaml:"depth" validate:"gte=0"`
	Budget    int       `json:"N" yaml:"budget" validate:"gte=0"`
}

func (e Example) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%v -> %v", e.In, e.Out)
	}
	return string(b)
}
