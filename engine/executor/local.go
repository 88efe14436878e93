package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/stage"
)

// Local is the default Executor variant (spec §4.4.1): a bounded worker
// pool plus a co-process cluster-memory IPC server reachable over a Unix
// domain socket. "Threads or processes selectable; processes are the
// default for isolation" in the reference has no Go analogue — goroutines
// are always in-process here, since Go has no ProcessPoolExecutor
// equivalent in the pack or stdlib; isolation is instead left to the
// caller's deployment (one Local executor per process).
type Local struct {
	*workerCore

	socketPath string
	server     *IPCServer

	mu      sync.Mutex
	started bool
}

// LocalConfig configures a Local executor (wired from Config.Executor in
// SPEC_FULL §2.1).
type LocalConfig struct {
	Workers             int
	Capacity            Capacity
	ClusterMemorySocket string
	Registry            *stage.Registry
}

func NewLocal(cfg LocalConfig) *Local {
	return &Local{
		workerCore: newWorkerCore(cfg.Workers, cfg.Capacity, cfg.Registry),
		socketPath: cfg.ClusterMemorySocket,
	}
}

// Start begins serving cluster memory; idempotent (spec §4.4 "start()...
// scoped acquisition").
func (l *Local) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	l.server = NewIPCServer(l.socketPath)
	if err := l.server.Start(ctx); err != nil {
		return core.NewError(
			fmt.Errorf("failed to start local executor: %w", err),
			core.CodeExecutorUnavailable,
			map[string]any{"socket": l.socketPath},
		)
	}
	l.started = true
	return nil
}

// Close shuts the pool with wait and stops the cluster memory server; safe
// to call even if Start failed or was never called.
func (l *Local) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return nil
	}
	l.started = false
	if l.server != nil {
		if err := l.server.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EnvironmentInfo reports diagnostics about the local backend (spec §4.4
// `environment_info`).
func (l *Local) EnvironmentInfo() map[string]any {
	return map[string]any{
		"kind":                "local",
		"cpus":                runtime.NumCPU(),
		"cluster_memory_sock": l.socketPath,
	}
}

// ClusterMemory returns a client bound to this executor's IPC server.
func (l *Local) ClusterMemory() ClusterMemory {
	return newIPCClient(l.socketPath)
}
