// Package enginetest provides an instrumented in-process engine for tests
// that exercise the host without a real runtime.
package enginetest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/caffeineduck/funhost/engine"
	"github.com/caffeineduck/funhost/stager"
)

// Engine is a fake runtime. Zero-value error fields mean success.
type Engine struct {
	FS *stager.AferoFS

	// Eval handles Evaluate calls. When nil, Evaluate returns an empty
	// successful value.
	Eval func(ctx context.Context, source, configPath string) (engine.Value, error)

	LoadErr    error
	AddPathErr error
	ImportErr  error

	// Symbols, when non-empty, lists the module.symbol names Import accepts.
	Symbols []string

	loads     atomic.Int32
	addPaths  atomic.Int32
	imports   atomic.Int32
	evals     atomic.Int32
	inflight  atomic.Int32
	maxFlight atomic.Int32
	closed    atomic.Bool

	mu    sync.Mutex
	paths []string
	opts  engine.Options
}

// New returns a fake engine with an empty in-memory filesystem.
func New() *Engine {
	return &Engine{FS: stager.NewMemFS()}
}

// Load is an engine.LoadFunc returning e, or LoadErr.
func (e *Engine) Load(ctx context.Context, opts engine.Options) (engine.Engine, error) {
	e.loads.Add(1)
	e.mu.Lock()
	e.opts = opts
	e.mu.Unlock()
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	return e, nil
}

func (e *Engine) Filesystem() stager.Filesystem {
	return e.FS
}

func (e *Engine) AddSearchPath(ctx context.Context, path string) error {
	e.addPaths.Add(1)
	if e.AddPathErr != nil {
		return e.AddPathErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !slices.Contains(e.paths, path) {
		e.paths = append([]string{path}, e.paths...)
	}
	return nil
}

func (e *Engine) SearchPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.paths)
}

func (e *Engine) Import(ctx context.Context, module, symbol string) (engine.Evaluator, error) {
	e.imports.Add(1)
	if e.ImportErr != nil {
		return nil, e.ImportErr
	}
	if len(e.Symbols) > 0 && !slices.Contains(e.Symbols, module+"."+symbol) {
		return nil, errors.New("ImportError: cannot import name '" + symbol + "' from '" + module + "'")
	}
	return engine.EvaluatorFunc(e.evaluate), nil
}

func (e *Engine) evaluate(ctx context.Context, source, configPath string) (engine.Value, error) {
	e.evals.Add(1)
	n := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	for {
		cur := e.maxFlight.Load()
		if n <= cur || e.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if e.Eval == nil {
		return engine.MapValue{"stdout": "", "result": nil, "error": nil}, nil
	}
	return e.Eval(ctx, source, configPath)
}

func (e *Engine) Close(ctx context.Context) error {
	e.closed.Store(true)
	return nil
}

// Options returns the options the last Load received.
func (e *Engine) Options() engine.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// Counts reports how many times each stage entry point was called.
type Counts struct {
	Load, AddSearchPath, Import, Evaluate int
}

func (e *Engine) Counts() Counts {
	return Counts{
		Load:          int(e.loads.Load()),
		AddSearchPath: int(e.addPaths.Load()),
		Import:        int(e.imports.Load()),
		Evaluate:      int(e.evals.Load()),
	}
}

// MaxInflight is the highest number of concurrent Evaluate calls observed.
func (e *Engine) MaxInflight() int {
	return int(e.maxFlight.Load())
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}
