// Package python provides the Python guest for the wasm engine.
//
// The interpreter binary itself is fetched at load time from the configured
// engine asset; this package only supplies the bridge program it runs.
package python

import (
	_ "embed"
)

//go:embed bridge.py
var bridge string

// Python implements wasm.Guest for a WASI build of CPython or RustPython.
type Python struct{}

// New returns a Python guest.
func New() *Python {
	return &Python{}
}

// Name returns "python".
func (p *Python) Name() string {
	return "python"
}

// Args runs the bridge program with -c.
func (p *Python) Args() []string {
	return []string{"python", "-c", bridge}
}

// Env keeps the interpreter from writing bytecode caches into the
// read-only staging tree.
func (p *Python) Env() map[string]string {
	return map[string]string{
		"PYTHONDONTWRITEBYTECODE": "1",
		"PYTHONUNBUFFERED":        "1",
		"PYTHONIOENCODING":        "utf-8",
	}
}
