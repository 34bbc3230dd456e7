package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/snow-ghost/synth/testkit"
)

var validate = validator.New()

// Loader handles loading language registries
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// LoadRegistry loads the registry from the configuration file. Without a
// file every built-in language is offered. Relative wasm paths are
// resolved against the file's directory.
func (l *Loader) LoadRegistry() (*Registry, error) {
	if configPath := os.Getenv("SYNTH_LANGUAGES"); configPath != "" {
		l.configPath = configPath
	}
	if l.configPath == "" {
		l.configPath = "languages.yaml"
	}

	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return GetDefaultRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
	}
	registry, err := LoadRegistryFromBytes(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(l.configPath)
	for i := range registry.Languages {
		if w := registry.Languages[i].Wasm; w != "" && !filepath.IsAbs(w) {
			registry.Languages[i].Wasm = filepath.Join(dir, w)
		}
	}
	return registry, nil
}

// LoadRegistryFromBytes loads registry from byte data
func LoadRegistryFromBytes(data []byte) (*Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := validate.Struct(&registry); err != nil {
		return nil, fmt.Errorf("invalid language registry: %w", err)
	}
	seen := map[string]bool{}
	for _, l := range registry.Languages {
		if seen[l.Name] {
			return nil, fmt.Errorf("language %s declared twice", l.Name)
		}
		seen[l.Name] = true
	}
	return &registry, nil
}

// GetDefaultRegistry offers every built-in language under its own name.
func GetDefaultRegistry() *Registry {
	names := testkit.LanguageNames()
	r := &Registry{Languages: make([]LanguageConfig, len(names))}
	for i, n := range names {
		r.Languages[i] = LanguageConfig{Name: n, Builtin: n}
	}
	return r
}
