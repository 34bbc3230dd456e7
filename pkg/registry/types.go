// Package registry resolves the languages a synthesis server offers:
// built-in example languages and languages backed by WebAssembly modules.
package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/interp/wasm"
	"github.com/snow-ghost/synth/lang"
	"github.com/snow-ghost/synth/testkit"
)

// LanguageConfig declares one language. Exactly one of Builtin and Wasm is
// set.
type LanguageConfig struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Builtin string `json:"builtin,omitempty" yaml:"builtin,omitempty" validate:"required_without=Wasm,excluded_with=Wasm"`
	Wasm    string `json:"wasm,omitempty" yaml:"wasm,omitempty" validate:"required_without=Builtin"`
	Scorer  string `json:"scorer,omitempty" yaml:"scorer,omitempty" validate:"omitempty,oneof=distance numeric"`
}

// Registry is the set of languages a server offers.
type Registry struct {
	Languages []LanguageConfig `json:"languages" yaml:"languages" validate:"dive"`

	mu   sync.Mutex
	wasm map[string][]*lang.Primitive
}

// GetLanguage returns a language configuration by name
func (r *Registry) GetLanguage(name string) *LanguageConfig {
	for i := range r.Languages {
		if r.Languages[i].Name == name {
			return &r.Languages[i]
		}
	}
	return nil
}

// Names lists the configured languages in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.Languages))
	for i, l := range r.Languages {
		names[i] = l.Name
	}
	sort.Strings(names)
	return names
}

// Open compiles the WebAssembly modules the registry names. Builtin
// languages need no opening.
func (r *Registry) Open(ctx context.Context, interp *wasm.Interpreter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wasm = make(map[string][]*lang.Primitive)
	for _, l := range r.Languages {
		if l.Wasm == "" {
			continue
		}
		bin, err := os.ReadFile(l.Wasm)
		if err != nil {
			return fmt.Errorf("language %s: %w", l.Name, err)
		}
		m, err := interp.Load(ctx, l.Name, bin)
		if err != nil {
			return fmt.Errorf("language %s: %w", l.Name, err)
		}
		prims, err := m.Primitives()
		if err != nil {
			return fmt.Errorf("language %s: %w", l.Name, err)
		}
		r.wasm[l.Name] = prims
	}
	return nil
}

// Language resolves a language by name. It implements worker.Catalog.
func (r *Registry) Language(name string) ([]*lang.Primitive, core.Scorer, error) {
	cfg := r.GetLanguage(name)
	if cfg == nil {
		return nil, nil, fmt.Errorf("unknown language %q", name)
	}
	scorerName := cfg.Scorer
	if scorerName == "" {
		scorerName = "numeric"
	}
	scorer, ok := core.Scorers[scorerName]
	if !ok {
		return nil, nil, fmt.Errorf("unknown scorer %q", scorerName)
	}
	if cfg.Builtin != "" {
		decls, err := testkit.Declarations(cfg.Builtin)
		if err != nil {
			return nil, nil, err
		}
		return decls, scorer, nil
	}

	r.mu.Lock()
	prims, ok := r.wasm[name]
	r.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("language %s is not open", name)
	}
	out := make([]*lang.Primitive, len(prims))
	copy(out, prims)
	return out, scorer, nil
}
