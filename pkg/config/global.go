package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	globalManager   atomic.Pointer[Manager]
	globalInitOnce  sync.Once
	globalResetLock sync.Mutex
)

// Initialize loads the global configuration exactly once per process (or
// since the last resetForTest); subsequent calls are no-ops that return nil.
func Initialize(ctx context.Context, service Service, sources ...Source) error {
	var initErr error
	globalInitOnce.Do(func() {
		m := NewManager(service)
		if _, err := m.Load(ctx, sources...); err != nil {
			initErr = fmt.Errorf("failed to initialize global config: %w", err)
			return
		}
		globalManager.Store(m)
	})
	return initErr
}

// Get returns the global Config, panicking if Initialize has not been
// called — callers are expected to run at a point in startup where
// configuration is guaranteed loaded.
func Get() *Config {
	m := globalManager.Load()
	if m == nil {
		panic("config: global configuration accessed before Initialize")
	}
	cfg := m.Get()
	if cfg == nil {
		panic("config: global configuration accessed before Initialize")
	}
	return cfg
}

// OnChange registers a callback against the global Manager.
func OnChange(fn func(*Config)) {
	m := globalManager.Load()
	if m == nil {
		panic("config: global configuration accessed before Initialize")
	}
	m.OnChange(fn)
}

// Reload re-runs Load against the global Manager's sources.
func Reload(ctx context.Context) error {
	m := globalManager.Load()
	if m == nil {
		panic("config: global configuration accessed before Initialize")
	}
	return m.Reload(ctx)
}

// Close releases the global Manager's resources; idempotent.
func Close(ctx context.Context) error {
	m := globalManager.Load()
	if m == nil {
		return nil
	}
	return m.Close(ctx)
}

// resetForTest clears global state so a subsequent Initialize call takes
// effect again. Only used by this package's own tests.
func resetForTest() {
	globalResetLock.Lock()
	defer globalResetLock.Unlock()
	globalManager.Store(nil)
	globalInitOnce = sync.Once{}
}
