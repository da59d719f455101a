// Package engine defines the boundary between the host and an embedded
// scripting runtime.
//
// A runtime is acquired once with a [LoadFunc], receives its support files
// through [Engine.Filesystem], learns where to find them through
// [Engine.AddSearchPath], and exposes a single entry point through
// [Engine.Import]. Values returned by the entry point cross back into the
// host as [Value] and are converted with [Value.HostValue].
package engine

import (
	"context"

	"github.com/caffeineduck/funhost/stager"
)

// Options are passed to a LoadFunc.
type Options struct {
	// AssetURL locates the runtime's own binary assets, relative to the
	// loader's content source or absolute.
	AssetURL string
	// Env is handed to the runtime process, where it has one.
	Env map[string]string
}

// LoadFunc acquires a runtime instance. It may block for a long time.
type LoadFunc func(ctx context.Context, opts Options) (Engine, error)

// Engine is a loaded runtime.
type Engine interface {
	// Filesystem is the runtime's private filesystem.
	Filesystem() stager.Filesystem

	// AddSearchPath registers path on the runtime's module search
	// mechanism. Registering a path that is already present is a no-op.
	AddSearchPath(ctx context.Context, path string) error

	// SearchPaths returns the paths registered so far, in order.
	SearchPaths() []string

	// Import resolves symbol from module and returns it as an Evaluator.
	Import(ctx context.Context, module, symbol string) (Evaluator, error)

	Close(ctx context.Context) error
}

// Evaluator is an imported entry point.
type Evaluator interface {
	// Evaluate runs source with an optional configuration path; an empty
	// configPath means no configuration.
	Evaluate(ctx context.Context, source, configPath string) (Value, error)
}

// Value is a result that has not yet been converted to host types.
type Value interface {
	// HostValue converts the value to a host map. It fails when the value
	// is not a mapping.
	HostValue() (map[string]any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, source, configPath string) (Value, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, source, configPath string) (Value, error) {
	return f(ctx, source, configPath)
}
