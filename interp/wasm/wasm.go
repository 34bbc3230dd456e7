// Package wasm turns functions exported by WebAssembly modules into
// language primitives.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/snow-ghost/synth/ast"
	"github.com/snow-ghost/synth/core"
	"github.com/snow-ghost/synth/lang"
)

// ErrNoPrimitives is returned for a module that exports no usable function.
var ErrNoPrimitives = errors.New("module exports no f64 functions")

// Interpreter owns the wazero runtime and the modules compiled on it.
type Interpreter struct {
	runtime wazero.Runtime
	mu      sync.Mutex
	cache   map[string]*Module
}

// NewInterpreter creates a new WASM interpreter with default configuration
func NewInterpreter() *Interpreter {
	config := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(64). // 64 pages = 4MB
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(context.Background(), config)
	wasi_snapshot_preview1.MustInstantiate(context.Background(), runtime)

	return &Interpreter{
		runtime: runtime,
		cache:   make(map[string]*Module),
	}
}

// Module is an instantiated module. Calls into it are serialized.
type Module struct {
	name     string
	instance api.Module
	mu       sync.Mutex
	// CallTimeout bounds one call; zero means no bound. A call that times
	// out closes the module and every later call fails.
	CallTimeout time.Duration
}

// Load compiles and instantiates bin under name. Loading the same name
// twice returns the first module.
func (i *Interpreter) Load(ctx context.Context, name string, bin []byte) (*Module, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if m, exists := i.cache[name]; exists {
		return m, nil
	}
	compiled, err := i.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}
	instance, err := i.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	m := &Module{name: name, instance: instance}
	i.cache[name] = m
	return m, nil
}

// Primitives returns one fun primitive per exported function whose
// parameters and single result are all f64, typed float -> ... -> float
// and sorted by name.
func (m *Module) Primitives() ([]*lang.Primitive, error) {
	defs := m.instance.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name, def := range defs {
		if allF64(def.ParamTypes()) && len(def.ResultTypes()) == 1 && allF64(def.ResultTypes()) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", m.name, ErrNoPrimitives)
	}
	sort.Strings(names)

	prims := make([]*lang.Primitive, len(names))
	for k, name := range names {
		arity := len(defs[name].ParamTypes())
		prims[k] = &lang.Primitive{
			Name: name,
			Kind: lang.KindFun,
			Sig:  signature(arity),
			Imp:  m.imp(name, arity),
		}
	}
	return prims, nil
}

func allF64(types []api.ValueType) bool {
	for _, t := range types {
		if t != api.ValueTypeF64 {
			return false
		}
	}
	return true
}

func signature(arity int) string {
	parts := make([]string, arity+1)
	for i := range parts {
		parts[i] = "float"
	}
	return strings.Join(parts, "->")
}

func (m *Module) imp(name string, arity int) ast.Imp {
	fn := m.instance.ExportedFunction(name)
	return func(args []core.Value, _ core.Inputs) (core.Value, error) {
		params := make([]uint64, arity)
		for i := 0; i < arity; i++ {
			v, ok := core.AsFloat(args[i])
			if !ok {
				return nil, ast.BadArg(i, "want number, got %T", args[i])
			}
			params[i] = api.EncodeF64(v)
		}
		res, err := m.call(fn, params)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.name, name, err)
		}
		return api.DecodeF64(res[0]), nil
	}
}

func (m *Module) call(fn api.Function, params []uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	if m.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.CallTimeout)
		defer cancel()
	}
	return fn.Call(ctx, params...)
}

// Close closes the interpreter and cleans up resources
func (i *Interpreter) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}
