// Package shutdown coordinates a graceful stop of the fluxfsm processes:
// the first SIGINT or SIGTERM cancels the run context, then the registered
// hooks release resources (HTTP server, fleet pool, telemetry exporters).
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fluxstate/fluxfsm/logger"
)

// DefaultTimeout bounds the time all hooks together may take.
const DefaultTimeout = 10 * time.Second

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Coordinator collects shutdown hooks and runs them once.
type Coordinator struct {
	timeout time.Duration

	mu    sync.Mutex
	hooks []hook
	done  bool

	signals chan os.Signal
}

// New returns a Coordinator whose hooks share the given timeout. A
// non-positive timeout means DefaultTimeout.
func New(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Coordinator{timeout: timeout}
}

// BeforeShutdown registers fn under name. Hooks run in reverse registration
// order, so a resource registered after the ones it depends on is released
// first.
func (c *Coordinator) BeforeShutdown(name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, hook{name: name, fn: fn})
}

// SetupHandler returns a context that is canceled on the first SIGINT or
// SIGTERM, or when Trigger is called. Hooks are not run by the signal;
// call Shutdown once the main loop has returned.
func (c *Coordinator) SetupHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.signals = make(chan os.Signal, 1)
	signals := c.signals
	c.mu.Unlock()

	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			logger.Get(ctx).Warn("Received " + sig.String() + ", shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

// Trigger starts the shutdown as if a signal had arrived. It is a no-op
// before SetupHandler.
func (c *Coordinator) Trigger() {
	c.mu.Lock()
	signals := c.signals
	c.mu.Unlock()

	if signals == nil {
		return
	}

	select {
	case signals <- os.Interrupt:
	default:
	}
}

// Shutdown runs the hooks newest first and joins their errors. Only the first
// call does any work.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()

		return nil
	}

	c.done = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	log := logger.Get(ctx)

	var errs []error

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		log.Debug("Running shutdown hook", "hook", h.name)

		if err := h.fn(ctx); err != nil {
			log.Error("Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}
