// Package service implements the service controller (spec §4.9, SPEC_FULL
// §5): a fixed registry of long-lived Services run through a sequential
// startup, concurrent run, and sequential shutdown lifecycle, with signal
// handling and an errgroup-based run loop.
package service

import (
	"context"
	"fmt"

	"github.com/fluxweave/fluxweave/pkg/logger"
)

// Service is a long-lived component the Controller manages. Startup must
// complete before Run is invoked; Shutdown always runs, even if Startup or
// Run failed or the controller's context was canceled.
type Service interface {
	Name() string
	Startup(ctx context.Context) error
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Status is returned by Controller.Status for every registered Service.
type Status struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

const (
	stateRegistered = "registered"
	stateStarting   = "starting"
	stateRunning    = "running"
	stateStopped    = "stopped"
	stateFailed     = "failed"
)

type entry struct {
	svc   Service
	state string
}

func logFromContext(ctx context.Context) logger.Logger {
	return logger.FromContext(ctx)
}

func wrapStage(stage, name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s failed for service %q: %w", stage, name, err)
}
