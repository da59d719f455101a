package wasm

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caffeineduck/funhost/hostfunc"
	"github.com/charmbracelet/log"
)

// Option configures an Engine at load time.
type Option func(*config)

type config struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32 // 0 = wazero default (4GB)
	startTimeout     time.Duration
	registry         *hostfunc.Registry
	logger           *log.Logger
}

func defaultConfig() config {
	return config{
		startTimeout: 30 * time.Second,
		logger:       log.New(io.Discard),
	}
}

// WithDiskCache enables a persistent compilation cache, so later processes
// skip compiling the interpreter. Without a directory it uses
// $XDG_CACHE_HOME/funhost or ~/.cache/funhost.
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps guest memory. Each page is 64KB.
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
	MemoryLimit1GB   uint32 = 16384
)

// WithStartTimeout bounds how long Load waits for the guest to signal
// readiness.
func WithStartTimeout(d time.Duration) Option {
	return func(c *config) {
		c.startTimeout = d
	}
}

// WithRegistry adds host functions the guest may call, in addition to the
// built-in time_now and log.
func WithRegistry(r *hostfunc.Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithLogger sets the engine logger. Guest diagnostics are logged at debug.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "funhost")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "funhost")
	}
	return filepath.Join(os.TempDir(), "funhost-cache")
}
