package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/caffeineduck/funhost/engine"
	"github.com/caffeineduck/funhost/manifest"
	"github.com/caffeineduck/funhost/stager"
	"github.com/charmbracelet/log"
)

// Fetcher reads boot resources from the content source.
type Fetcher interface {
	FetchText(ctx context.Context, path string) (string, error)
	FetchStructured(ctx context.Context, path string, v any) error
}

// Config names the resources and runtime symbols used during boot.
type Config struct {
	ManifestPath  string
	SourcesPrefix string
	StagingRoot   string
	ConfigsRoot   string
	EntryModule   string
	EntrySymbol   string
	Engine        engine.Options
}

// DefaultConfig returns the layout the FunLang runner is published with.
func DefaultConfig() Config {
	return Config{
		ManifestPath:  "py/manifest.json",
		SourcesPrefix: "py",
		StagingRoot:   "/app",
		ConfigsRoot:   "/app/configs",
		EntryModule:   "funlang_runner",
		EntrySymbol:   "eval_funlang",
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithObserver registers fn to receive every state transition, in order.
func WithObserver(fn func(Transition)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// Controller owns the runtime lifecycle: one Boot, then any number of
// serialized Runs.
type Controller struct {
	cfg       Config
	fetcher   Fetcher
	load      engine.LoadFunc
	resolver  ConfigResolver
	logger    *log.Logger
	observers []func(Transition)

	mu      sync.RWMutex
	state   State
	failure error
	engine  engine.Engine
	eval    engine.Evaluator

	execMu  sync.Mutex
	running bool
}

// New returns an Idle controller.
func New(cfg Config, fetcher Fetcher, load engine.LoadFunc, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		fetcher:  fetcher,
		load:     load,
		resolver: ConfigResolver{Root: cfg.ConfigsRoot},
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Failure returns the boot failure, or nil unless the state is Failed.
func (c *Controller) Failure() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failure
}

// Status is a point-in-time view of a Controller.
type Status struct {
	State   State
	Busy    bool
	Failure error
}

// Status returns the state, failure and busy flag read together.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{State: c.state, Busy: c.running, Failure: c.failure}
}

// Engine returns the loaded engine, or nil before LoadingEngine completes.
func (c *Controller) Engine() engine.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Resolver returns the configuration selector mapping in use.
func (c *Controller) Resolver() ConfigResolver {
	return c.resolver
}

// Boot drives the controller from Idle to Ready. Any failure is terminal:
// the controller moves to Failed and the error is returned once. Calling
// Boot on a controller that has left Idle returns ErrAlreadyBooted.
func (c *Controller) Boot(ctx context.Context) error {
	if !c.advance(Idle, LoadingEngine, nil) {
		return ErrAlreadyBooted
	}

	var (
		eng engine.Engine
		m   *manifest.Manifest
		ev  engine.Evaluator
	)

	steps := []struct {
		state State
		run   func() error
	}{
		{LoadingEngine, func() error {
			var err error
			eng, err = c.load(ctx, c.cfg.Engine)
			if err != nil {
				return fmt.Errorf("load engine: %w", err)
			}
			if eng == nil {
				return fmt.Errorf("load engine: no engine returned")
			}
			c.mu.Lock()
			c.engine = eng
			c.mu.Unlock()
			return nil
		}},
		{LoadingManifest, func() error {
			var raw json.RawMessage
			if err := c.fetcher.FetchStructured(ctx, c.cfg.ManifestPath, &raw); err != nil {
				return err
			}
			var err error
			m, err = manifest.Parse(raw)
			return err
		}},
		{StagingFiles, func() error {
			st := stager.New(eng.Filesystem(), c.cfg.StagingRoot, c.logger)
			return st.StageManifest(ctx, m, c.fetcher, c.cfg.SourcesPrefix)
		}},
		{RegisteringPath, func() error {
			if err := eng.AddSearchPath(ctx, c.cfg.StagingRoot); err != nil {
				return fmt.Errorf("register search path %s: %w", c.cfg.StagingRoot, err)
			}
			return nil
		}},
		{ImportingEntryPoint, func() error {
			var err error
			ev, err = eng.Import(ctx, c.cfg.EntryModule, c.cfg.EntrySymbol)
			if err != nil {
				return fmt.Errorf("import %s.%s: %w", c.cfg.EntryModule, c.cfg.EntrySymbol, err)
			}
			if ev == nil {
				return fmt.Errorf("import %s.%s: no entry point returned", c.cfg.EntryModule, c.cfg.EntrySymbol)
			}
			return nil
		}},
	}

	for i, step := range steps {
		if i > 0 {
			c.advance(steps[i-1].state, step.state, nil)
		}
		if err := step.run(); err != nil {
			return c.fail(step.state, err)
		}
	}

	c.mu.Lock()
	c.eval = ev
	c.mu.Unlock()
	c.advance(ImportingEntryPoint, Ready, nil)
	c.logger.Info("runtime ready", "root", c.cfg.StagingRoot, "files", m.Len())
	return nil
}

func (c *Controller) fail(at State, err error) error {
	bootErr := &BootstrapError{State: at, Err: err}
	if !c.advance(at, Failed, bootErr) {
		return bootErr
	}

	c.mu.Lock()
	eng := c.engine
	c.engine = nil
	c.mu.Unlock()

	c.logger.Error("boot failed", "state", at, "err", err)
	if eng != nil {
		if cerr := eng.Close(context.Background()); cerr != nil {
			c.logger.Warn("close engine", "err", cerr)
		}
	}
	return bootErr
}

// advance moves from -> to when the current state is from and the move is
// legal, then notifies observers.
func (c *Controller) advance(from, to State, err error) bool {
	c.mu.Lock()
	if c.state != from || !canAdvance(from, to) {
		c.mu.Unlock()
		return false
	}
	c.state = to
	if to == Failed {
		c.failure = err
	}
	c.mu.Unlock()

	c.logger.Debug("transition", "from", from, "to", to)
	t := Transition{From: from, To: to, Err: err}
	for _, fn := range c.observers {
		fn(t)
	}
	return true
}

// Close releases the engine. The controller cannot be booted again.
func (c *Controller) Close(ctx context.Context) error {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.mu.Lock()
	eng := c.engine
	c.engine = nil
	c.eval = nil
	c.mu.Unlock()

	if eng == nil {
		return nil
	}
	return eng.Close(ctx)
}
