// Package console is the presentation layer shared by the REPL and the
// HTTP surface: it tracks what the user sees (status, source buffer,
// selected configuration, output transcript) and turns host outcomes into
// transcript text.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/caffeineduck/funhost/host"
	"github.com/charmbracelet/log"
)

// ErrDisabled is returned by triggers while controls are disabled, before
// the host is ready, during a run, or after a boot failure.
var ErrDisabled = errors.New("controls disabled")

// Runner executes source on the host.
type Runner interface {
	Run(ctx context.Context, source string, sel host.Selector) host.Outcome
	TryRun(ctx context.Context, source string, sel host.Selector) (host.Outcome, error)
}

// Console holds presentation state for one host.
type Console struct {
	runner Runner
	out    *Sink
	logger *log.Logger

	mu       sync.RWMutex
	status   Status
	ready    Status
	enabled  bool
	inflight int
	selector host.Selector
	source   string
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the console logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// WithSink replaces the default output sink.
func WithSink(s *Sink) Option {
	return func(c *Console) {
		c.out = s
	}
}

// New returns a console in the not-ready state with the default example as
// its source. Wire [Console.Observe] to the host with host.WithObserver.
func New(runner Runner, opts ...Option) *Console {
	c := &Console{
		runner:   runner,
		out:      NewSink(nil),
		logger:   log.New(io.Discard),
		status:   statusFor(host.Idle),
		selector: host.DefaultSelector,
		source:   Example(host.DefaultSelector),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe updates the status from a host transition. On Ready the controls
// are enabled; on Failed they stay disabled and the failure is appended to
// the transcript.
func (c *Console) Observe(t host.Transition) {
	st := statusFor(t.To)

	c.mu.Lock()
	c.status = st
	switch t.To {
	case host.Ready:
		c.enabled = true
		c.ready = st
	case host.Failed:
		c.enabled = false
	}
	c.mu.Unlock()

	if t.To == host.Failed && t.Err != nil {
		c.out.Append(fmt.Sprintf("\n[boot error]\n%s\n", t.Err))
	}
}

func (c *Console) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Enabled reports whether the triggers are accepted.
func (c *Console) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

func (c *Console) Selector() host.Selector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selector
}

// SetSelector changes the configuration used by later runs. The source is
// kept; once ready the status names the selection.
func (c *Console) SetSelector(sel host.Selector) {
	if sel == "" {
		sel = host.DefaultSelector
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selector = sel
	if c.ready.Kind == Ready {
		c.ready = Status{Ready, fmt.Sprintf("Ready (config: %s)", sel)}
		if c.inflight == 0 {
			c.status = c.ready
		}
	}
}

func (c *Console) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

func (c *Console) SetSource(src string) {
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
}

// LoadExample replaces the source with the sample for the current
// selection and returns it.
func (c *Console) LoadExample() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return "", ErrDisabled
	}
	c.source = Example(c.selector)
	return c.source, nil
}

// FormatSource applies [Format] to the source and returns the result.
func (c *Console) FormatSource() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return "", ErrDisabled
	}
	c.source = Format(c.source)
	return c.source, nil
}

// Output returns the transcript.
func (c *Console) Output() string {
	return c.out.String()
}

// Clear empties the transcript.
func (c *Console) Clear() error {
	if !c.Enabled() {
		return ErrDisabled
	}
	c.out.Clear()
	return nil
}

// Run executes the current source with the current selection, waiting for
// any run already in flight. Controls are disabled until it completes.
func (c *Console) Run(ctx context.Context) (host.Outcome, error) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return host.Outcome{}, ErrDisabled
	}
	c.enabled = false
	src, sel := c.source, c.selector
	c.mu.Unlock()

	c.begin()
	defer func() {
		c.end()
		c.mu.Lock()
		c.enabled = true
		c.mu.Unlock()
	}()

	c.out.Append(fmt.Sprintf("\n> run (%s)\n", sel))
	out := c.runner.Run(ctx, src, sel)
	c.out.Append(Transcript(out))
	c.logger.Debug("run finished", "config", sel, "failed", out.Failed(), "duration", out.Duration)
	return out, nil
}

// RunSource makes src the current source and runs it with sel, or with the
// current selection when sel is empty. Unlike Run it does not wait: it
// returns host.ErrSessionBusy when a run is in flight.
func (c *Console) RunSource(ctx context.Context, src string, sel host.Selector) (host.Outcome, error) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return host.Outcome{}, ErrDisabled
	}
	if sel == "" {
		sel = c.selector
	}
	c.source = src
	c.mu.Unlock()

	c.begin()
	defer c.end()

	out, err := c.runner.TryRun(ctx, src, sel)
	if err != nil {
		return host.Outcome{}, err
	}
	c.out.Append(fmt.Sprintf("\n> run (%s)\n", sel) + Transcript(out))
	c.logger.Debug("run finished", "config", sel, "failed", out.Failed(), "duration", out.Duration)
	return out, nil
}

// begin and end keep the status at Running while any run is in flight.
func (c *Console) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
	c.status = Status{Running, "Running..."}
}

func (c *Console) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		c.status = c.ready
	}
}

// Transcript renders an outcome the way it is appended after the run
// header: stdout, then the error or the non-empty result.
func Transcript(out host.Outcome) string {
	s := out.Stdout
	switch {
	case out.Fault:
		s += fmt.Sprintf("\n[runtime error]\n%s\n", out.Error)
	case out.Error != "":
		s += fmt.Sprintf("\n[error]\n%s\n", out.Error)
	case out.Result != nil && *out.Result != "":
		s += fmt.Sprintf("\n[result] %s\n", *out.Result)
	}
	return s
}
