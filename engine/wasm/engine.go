package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/caffeineduck/funhost/engine"
	"github.com/caffeineduck/funhost/hostfunc"
	"github.com/caffeineduck/funhost/stager"
	"github.com/charmbracelet/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

var (
	ErrClosed      = errors.New("engine closed")
	ErrGuestExited = errors.New("guest exited")
)

// Guest describes an interpreter module that runs the bridge loop.
type Guest interface {
	// Name identifies the guest in logs.
	Name() string
	// Args is the guest's argv, program name first.
	Args() []string
	// Env is merged under the engine environment.
	Env() map[string]string
}

// Fetcher reads the guest module.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// GuestError is a failure reported by the guest for one command.
type GuestError struct {
	Op      string
	Message string
}

func (e *GuestError) Error() string {
	return e.Message
}

// Engine runs one guest instance for its whole lifetime. Commands are
// written as JSON lines to the guest's stdin and answered on its stderr,
// one at a time.
type Engine struct {
	guest    Guest
	cfg      config
	logger   *log.Logger
	registry *hostfunc.Registry
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	fs       *stager.AferoFS

	stdin       *io.PipeWriter
	stdinReader *io.PipeReader
	writeMu     sync.Mutex
	stdout      *output
	proto       *protocol
	cancel      context.CancelFunc

	exited  chan struct{}
	exitErr error

	mu     sync.Mutex
	paths  []string
	closed bool
}

// NewLoader returns a LoadFunc that fetches the guest module at
// Options.AssetURL from f and starts it.
func NewLoader(f Fetcher, guest Guest, opts ...Option) engine.LoadFunc {
	return func(ctx context.Context, eo engine.Options) (engine.Engine, error) {
		if eo.AssetURL == "" {
			return nil, errors.New("no engine asset configured")
		}
		bin, err := f.Fetch(ctx, eo.AssetURL)
		if err != nil {
			return nil, fmt.Errorf("fetch engine asset: %w", err)
		}
		return New(ctx, bin, guest, eo.Env, opts...)
	}
}

// New compiles module and starts the guest with an empty private
// filesystem mounted read-only at "/". It returns once the guest signals
// readiness.
func New(ctx context.Context, module []byte, guest Guest, env map[string]string, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	e := &Engine{
		guest:   guest,
		cfg:     cfg,
		logger:  cfg.logger.WithPrefix(guest.Name()),
		runtime: rt,
		cache:   cache,
		fs:      stager.NewMemFS(),
		stdout:  &output{},
		exited:  make(chan struct{}),
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		e.release()
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	start := time.Now()
	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		e.release()
		return nil, fmt.Errorf("compile %s: %w", guest.Name(), err)
	}
	e.logger.Debug("compiled guest", "bytes", len(module), "took", time.Since(start))

	e.registry = e.buildRegistry()
	if err := e.start(compiled, env); err != nil {
		e.Close(context.Background())
		return nil, err
	}
	return e, nil
}

func (e *Engine) buildRegistry() *hostfunc.Registry {
	registry := hostfunc.NewRegistry()
	registry.Register("time_now", hostfunc.TimeNow)
	registry.Register("log", hostfunc.NewLog(e.logger))
	if e.cfg.registry != nil {
		for name, fn := range e.cfg.registry.All() {
			registry.Register(name, fn)
		}
	}
	return registry
}

func (e *Engine) start(compiled wazero.CompiledModule, env map[string]string) error {
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.stdinReader, e.stdin = io.Pipe()
	e.proto = newProtocol(runCtx, e.registry, e.writeLine, e.logger)

	merged := map[string]string{"FUNHOST_SESSION": "1"}
	maps.Copy(merged, e.guest.Env())
	maps.Copy(merged, env)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(e.stdout).
		WithStderr(e.proto).
		WithStdin(e.stdinReader).
		WithArgs(e.guest.Args()...).
		WithName("").
		WithSysWalltime().
		WithSysNanotime().
		WithFSConfig(wazero.NewFSConfig().WithFSMount(e.fs.IOFS(), "/"))

	for _, k := range slices.Sorted(maps.Keys(merged)) {
		moduleConfig = moduleConfig.WithEnv(k, merged[k])
	}

	go func() {
		_, err := e.runtime.InstantiateModule(runCtx, compiled, moduleConfig)
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
			err = nil
		}
		if err != nil {
			e.exitErr = fmt.Errorf("%w: %w", ErrGuestExited, err)
		} else {
			e.exitErr = ErrGuestExited
		}
		e.stdinReader.CloseWithError(ErrGuestExited)
		close(e.exited)
	}()

	select {
	case <-e.proto.Ready():
		e.logger.Debug("guest ready")
		return nil
	case <-e.exited:
		e.flushOutput()
		return fmt.Errorf("start %s: %w", e.guest.Name(), e.exitErr)
	case <-time.After(e.cfg.startTimeout):
		return fmt.Errorf("start %s: timeout after %v", e.guest.Name(), e.cfg.startTimeout)
	}
}

func (e *Engine) writeLine(data []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_, err := e.stdin.Write(data)
	return err
}

// roundTrip sends cmd and waits for its reply. A cancelled context stops
// the guest, since an abandoned command would desynchronize the stream.
func (e *Engine) roundTrip(ctx context.Context, cmd command) (json.RawMessage, error) {
	if e.closed {
		return nil, ErrClosed
	}
	select {
	case <-e.exited:
		return nil, fmt.Errorf("%s: %w", cmd.Type, e.exitErr)
	default:
	}

	e.proto.drain()
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Type, err)
	}
	if err := e.writeLine(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write %s: %w", cmd.Type, err)
	}

	select {
	case r := <-e.proto.replies:
		e.flushOutput()
		if !r.OK {
			return nil, &GuestError{Op: cmd.Type, Message: r.Error}
		}
		return r.Value, nil
	case <-e.exited:
		e.flushOutput()
		return nil, fmt.Errorf("%s: %w", cmd.Type, e.exitErr)
	case <-ctx.Done():
		e.logger.Warn("abandoning guest command", "type", cmd.Type, "err", ctx.Err())
		e.cancel()
		return nil, ctx.Err()
	}
}

// flushOutput logs guest output that was not part of a reply.
func (e *Engine) flushOutput() {
	if s := e.stdout.take(); s != "" {
		e.logger.Debug("guest stdout", "text", strings.TrimRight(s, "\n"))
	}
	if s := e.proto.takeStderr(); s != "" {
		e.logger.Debug("guest stderr", "text", strings.TrimRight(s, "\n"))
	}
}

func (e *Engine) Filesystem() stager.Filesystem {
	return e.fs
}

// FS returns the private filesystem with its read helpers.
func (e *Engine) FS() *stager.AferoFS {
	return e.fs
}

func (e *Engine) AddSearchPath(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if slices.Contains(e.paths, path) {
		return nil
	}
	if _, err := e.roundTrip(ctx, command{Type: "path", Path: path}); err != nil {
		return err
	}
	e.paths = append([]string{path}, e.paths...)
	return nil
}

func (e *Engine) SearchPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.paths)
}

func (e *Engine) Import(ctx context.Context, module, symbol string) (engine.Evaluator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.roundTrip(ctx, command{Type: "import", Module: module, Symbol: symbol}); err != nil {
		return nil, err
	}
	return &evaluator{engine: e, entry: module + "." + symbol}, nil
}

type evaluator struct {
	engine *Engine
	entry  string
}

func (ev *evaluator) Evaluate(ctx context.Context, source, configPath string) (engine.Value, error) {
	e := ev.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	cmd := command{Type: "eval", Entry: ev.entry, Source: source}
	if configPath != "" {
		cmd.Config = &configPath
	}
	value, err := e.roundTrip(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return engine.JSONValue(value), nil
}

// Close stops the guest and releases the runtime. It is safe to call more
// than once.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.stdin != nil {
		// Closing stdin ends the bridge loop; a guest stuck elsewhere is
		// stopped by cancelling its context.
		e.stdin.Close()
		select {
		case <-e.exited:
		case <-time.After(time.Second):
			e.cancel()
		}
	}
	return e.release()
}

func (e *Engine) release() error {
	ctx := context.Background()
	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.cancel != nil {
		e.cancel()
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// output collects guest stdout between commands.
type output struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (o *output) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(data)
}

func (o *output) take() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.buf.String()
	o.buf.Reset()
	return s
}
