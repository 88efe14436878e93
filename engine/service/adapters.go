package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/engine/trigger"
	"github.com/fluxweave/fluxweave/pkg/logger"
)

// BusService adapts engine/bus.EventBus into a Service: Startup connects
// the broker and begins dispatching to registered callbacks, Run blocks
// until the controller's context ends, Shutdown disconnects.
//
// EventBus.Connect only subscribes to channels that already have a
// registered callback, so BusService must be the last Service registered
// with the Controller: every Service whose Startup registers a bus
// callback (ConditionWatcherService, or a caller invoking
// workflow.Runtime.RegisterBusCallback / trigger.RegisterDefaultActions
// directly before Controller.Run) needs to run first.
type BusService struct {
	Bus *bus.EventBus
}

func (s *BusService) Name() string { return "event-bus" }

func (s *BusService) Startup(ctx context.Context) error {
	return s.Bus.Connect(ctx)
}

func (s *BusService) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *BusService) Shutdown(ctx context.Context) error {
	return s.Bus.Disconnect(ctx)
}

// ScheduleService adapts engine/trigger.ScheduleEngine into a Service:
// Run blocks for the engine's own tick loop, which already respects
// ctx cancellation (spec §4.7).
type ScheduleService struct {
	Engine *trigger.ScheduleEngine
}

func (s *ScheduleService) Name() string { return "schedule-trigger" }

func (s *ScheduleService) Startup(_ context.Context) error { return nil }

func (s *ScheduleService) Run(ctx context.Context) error {
	s.Engine.Run(ctx)
	return nil
}

func (s *ScheduleService) Shutdown(_ context.Context) error { return nil }

// ConditionWatcherService registers a trigger.ConditionWatcher's bus
// subscription at Startup; the watcher itself does no independent work
// once registered, so Run just waits out the controller's lifetime.
type ConditionWatcherService struct {
	Watcher *trigger.ConditionWatcher
	Bus     *bus.EventBus
}

func (s *ConditionWatcherService) Name() string { return "condition-trigger" }

func (s *ConditionWatcherService) Startup(_ context.Context) error {
	s.Watcher.RegisterOn(s.Bus)
	return nil
}

func (s *ConditionWatcherService) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *ConditionWatcherService) Shutdown(_ context.Context) error { return nil }

// startCloser is the lifecycle slice of Local and Distributed both
// implement: Local's Start/Close bring up its cluster-memory IPC server,
// Distributed's ping Redis and report ExecutorUnavailable if unreachable.
type startCloser interface {
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

// ExecutorService adapts an executor's Start/Close lifecycle into a
// Service, so either Local's IPC server or Distributed's Redis
// reachability check runs through the same Controller-driven startup.
type ExecutorService struct {
	Executor startCloser
}

func (s *ExecutorService) Name() string { return "executor" }

func (s *ExecutorService) Startup(ctx context.Context) error {
	return s.Executor.Start(ctx)
}

func (s *ExecutorService) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *ExecutorService) Shutdown(ctx context.Context) error {
	return s.Executor.Close(ctx)
}

// HTTPService adapts a *http.Server into a Service, grounded on the
// reference server's createHTTPServer/startServer/handleGracefulShutdown
// split: Startup only binds the listener address, Run blocks in
// ListenAndServe until Shutdown (or the controller's context) closes it,
// and Shutdown calls http.Server.Shutdown for an in-flight-request-aware
// stop rather than dropping connections outright.
type HTTPService struct {
	Server *http.Server
}

func (s *HTTPService) Name() string { return "resource-api" }

func (s *HTTPService) Startup(_ context.Context) error { return nil }

func (s *HTTPService) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("starting HTTP server", "addr", s.Server.Addr)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Server.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *HTTPService) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
