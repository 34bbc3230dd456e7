package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/snow-ghost/synth/core"
)

// ProblemFile is a problem stored on disk together with the language and
// scorer it is meant for.
type ProblemFile struct {
	Language string       `yaml:"language" validate:"required"`
	Scorer   string       `yaml:"scorer" validate:"omitempty,oneof=distance numeric"`
	Problem  core.Problem `yaml:",inline"`
}

// LoadProblem reads and validates a problem file.
func LoadProblem(path string) (*ProblemFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem %s: %w", path, err)
	}
	return ParseProblem(data)
}

// ParseProblem decodes and validates a YAML problem.
func ParseProblem(data []byte) (*ProblemFile, error) {
	var p ProblemFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse problem: %w", err)
	}
	if p.Scorer == "" {
		p.Scorer = "numeric"
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid problem: %w", err)
	}
	p.Problem.Examples = core.NormalizeExamples(p.Problem.Examples)
	return &p, nil
}
