package host

import (
	"context"
	"fmt"
	"time"

	"github.com/caffeineduck/funhost/engine"
)

// Run evaluates source with the configuration named by sel. Runs are
// serialized: a call made while another is in flight waits for it.
//
// Run never fails outside the Outcome. Errors and panics from the runtime,
// and values of the wrong shape, are reported in Outcome.Error. The caller's
// cancellation is not propagated; an invoked run always completes.
func (c *Controller) Run(ctx context.Context, source string, sel Selector) Outcome {
	c.execMu.Lock()
	defer c.execMu.Unlock()
	return c.run(ctx, source, sel)
}

// TryRun is Run, except that it returns ErrSessionBusy instead of waiting
// when another run is in flight.
func (c *Controller) TryRun(ctx context.Context, source string, sel Selector) (Outcome, error) {
	if !c.execMu.TryLock() {
		return Outcome{}, ErrSessionBusy
	}
	defer c.execMu.Unlock()
	return c.run(ctx, source, sel), nil
}

// Busy reports whether a run is in flight.
func (c *Controller) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Controller) run(ctx context.Context, source string, sel Selector) Outcome {
	start := time.Now()

	c.mu.Lock()
	state, eval := c.state, c.eval
	if state == Ready && eval != nil {
		c.running = true
	}
	c.mu.Unlock()

	if state != Ready || eval == nil {
		out := errorOutcome("", &ExecutionError{Op: "run", Err: ErrNotReady})
		out.Duration = time.Since(start)
		return out
	}

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	configPath, _ := c.resolver.Resolve(sel)
	c.logger.Debug("run", "selector", sel, "config", configPath, "bytes", len(source))

	out := c.invoke(context.WithoutCancel(ctx), eval, source, configPath)
	out.Duration = time.Since(start)
	if out.Failed() {
		c.logger.Debug("run failed", "err", out.Error, "duration", out.Duration)
	}
	return out
}

func (c *Controller) invoke(ctx context.Context, eval engine.Evaluator, source, configPath string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("runtime panicked", "panic", r)
			out = errorOutcome("", &ExecutionError{Op: "evaluate", Err: panicError{value: r}})
		}
	}()

	value, err := eval.Evaluate(ctx, source, configPath)
	if err != nil {
		return errorOutcome("", &ExecutionError{Op: "evaluate", Err: err})
	}
	if value == nil {
		return errorOutcome("", &ExecutionError{Op: "evaluate", Err: fmt.Errorf("%w: runtime returned no value", ErrMalformedValue)})
	}

	m, err := value.HostValue()
	if err != nil {
		return errorOutcome("", &ExecutionError{Op: "convert", Err: fmt.Errorf("%w: %w", ErrMalformedValue, err)})
	}

	normalized, err := normalize(m)
	if err != nil {
		return errorOutcome(normalized.Stdout, &ExecutionError{Op: "convert", Err: err})
	}
	return normalized
}
