package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Controller is the service registry and lifecycle runner (spec §4.9's
// ServiceController, generalized from the reference's sequential
// startup/run/shutdown TaskSet phases): Register adds Services before
// Run is called; Run drives every registered Service through Startup,
// then Run (concurrently, via errgroup), then Shutdown, and installs
// SIGINT/SIGTERM handling so an operator's Ctrl-C cancels the run phase
// without skipping shutdown.
type Controller struct {
	mu       sync.Mutex
	entries  []*entry
	byName   map[string]*entry
	onSignal func(os.Signal)
}

// NewController returns an empty Controller; Register services before
// calling Run.
func NewController() *Controller {
	return &Controller{byName: make(map[string]*entry)}
}

// Register adds svc to the registry. Registration order is startup order;
// shutdown runs in reverse registration order, mirroring the reference's
// "CoreService first" convention via explicit caller ordering rather than
// a hardcoded first service.
func (c *Controller) Register(svc Service) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := svc.Name()
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("service %q already registered", name)
	}
	e := &entry{svc: svc, state: stateRegistered}
	c.entries = append(c.entries, e)
	c.byName[name] = e
	return nil
}

// Status reports every registered Service's current lifecycle state.
func (c *Controller) Status() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, len(c.entries))
	for i, e := range c.entries {
		out[i] = Status{Name: e.svc.Name(), State: e.state}
	}
	return out
}

func (c *Controller) setState(e *entry, state string) {
	c.mu.Lock()
	e.state = state
	c.mu.Unlock()
}

// Run installs signal handling, then executes the startup/run/shutdown
// lifecycle. It returns the first error encountered in any phase; a
// startup failure still runs shutdown for every service that already
// started, and a run-phase failure or external cancellation always runs
// shutdown before returning.
func (c *Controller) Run(ctx context.Context) error {
	log := logFromContext(ctx)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting services", "count", len(c.entries))
	startupErr := c.startup(ctx)
	var runErr error
	if startupErr == nil {
		log.Info("services ready")
		runErr = c.run(ctx)
	}
	log.Info("stopping services")
	shutdownErr := c.shutdown(context.WithoutCancel(ctx))

	if startupErr != nil {
		return startupErr
	}
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

func (c *Controller) startup(ctx context.Context) error {
	for _, e := range c.entries {
		c.setState(e, stateStarting)
		if err := e.svc.Startup(ctx); err != nil {
			c.setState(e, stateFailed)
			return wrapStage("startup", e.svc.Name(), err)
		}
		c.setState(e, stateRunning)
	}
	return nil
}

func (c *Controller) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range c.entries {
		e := e
		g.Go(func() error {
			err := e.svc.Run(gctx)
			if err != nil && gctx.Err() == nil {
				c.setState(e, stateFailed)
			}
			return wrapStage("run", e.svc.Name(), err)
		})
	}
	return g.Wait()
}

func (c *Controller) shutdown(ctx context.Context) error {
	var firstErr error
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if err := e.svc.Shutdown(ctx); err != nil {
			wrapped := wrapStage("shutdown", e.svc.Name(), err)
			if firstErr == nil {
				firstErr = wrapped
			}
			continue
		}
		c.setState(e, stateStopped)
	}
	return firstErr
}
