package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/v2"
)

// Service loads and validates Config from a set of Sources. NewService
// returns the default koanf-backed implementation; tests may substitute a
// mock to exercise Manager.Reload's validation/callback paths.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(cfg *Config) error
}

type defaultService struct{}

// NewService returns the koanf-backed default Service implementation.
func NewService() Service {
	return &defaultService{}
}

func (s *defaultService) Load(_ context.Context, sources ...Source) (*Config, error) {
	k := koanf.New(".")
	for _, src := range sources {
		raw, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load source %s: %w", src.Type(), err)
		}
		if err := k.Load(rawMapProvider(raw), nil); err != nil {
			return nil, fmt.Errorf("failed to merge source %s: %w", src.Type(), err)
		}
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook:       humanDurationHookFunc,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// humanDurationHookFunc lets duration fields (run_retention,
// schedule_tick_interval, dial_timeout) accept the same human-readable
// strings ("3 days", "1 hour 30 minutes") core.ParseHumanDuration parses
// for the reference config loader, as well as plain Go duration strings
// ("30s", "1h30m"), which ParseHumanDuration tries first.
func humanDurationHookFunc(_ reflect.Type, t reflect.Type, data any) (any, error) {
	if t != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	d, err := core.ParseHumanDuration(s)
	if err != nil {
		return data, nil
	}
	return d, nil
}

func (s *defaultService) Validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if cfg.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	switch cfg.Broker.Kind {
	case "memory", "nats":
	default:
		return fmt.Errorf("broker.kind %q is not supported", cfg.Broker.Kind)
	}
	switch cfg.Executor.Kind {
	case "local", "distributed":
	default:
		return fmt.Errorf("executor.kind %q is not supported", cfg.Executor.Kind)
	}
	switch cfg.Store.Kind {
	case "memory", "postgres":
	default:
		return fmt.Errorf("store.kind %q is not supported", cfg.Store.Kind)
	}
	return nil
}

// rawMapProvider adapts a pre-loaded map[string]any as a koanf.Provider so
// Sources (which already normalize to a flat/nested map) can be merged
// without re-implementing koanf's own file/env providers.
func rawMapProvider(raw map[string]any) koanf.Provider {
	return mapProvider(raw)
}

type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) { return nil, errors.New("not supported") }
func (m mapProvider) Read() (map[string]any, error) {
	return map[string]any(m), nil
}

// Manager owns the current Config, reloading it on demand or in response to
// watched source changes, and notifies registered callbacks when the
// effective configuration changes.
type Manager struct {
	Service   Service
	sources   []Source
	current   atomic.Pointer[Config]
	mu        sync.Mutex
	callbacks []func(*Config)
	debounce  time.Duration
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewManager constructs a Manager; a nil service uses the koanf-backed
// default.
func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{
		Service:  service,
		debounce: 100 * time.Millisecond,
	}
}

// SetDebounce overrides the default 100ms debounce applied to watched-source
// change notifications before a Reload is triggered.
func (m *Manager) SetDebounce(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debounce = d
}

// Load loads configuration from the given sources (applied in order, later
// sources overriding earlier ones), stores it, and starts watching every
// source that supports it.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, err
	}
	if err := m.Service.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	m.mu.Lock()
	m.sources = sources
	m.mu.Unlock()
	m.current.Store(cfg)
	m.startWatching(ctx)
	return cfg, nil
}

func (m *Manager) startWatching(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	sources := m.sources
	debounce := m.debounce
	m.mu.Unlock()

	var debounceTimer *time.Timer
	var timerMu sync.Mutex
	trigger := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(debounce, func() {
			_ = m.Reload(watchCtx)
		})
	}
	for _, src := range sources {
		_ = src.Watch(watchCtx, trigger)
	}
}

// Get returns the most recently loaded Config, or nil if Load has not been
// called yet.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Reload re-runs Load with the previously supplied sources and, if the
// resulting configuration differs, notifies every registered callback.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	sources := m.sources
	m.mu.Unlock()
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return err
	}
	if err := m.Service.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	prev := m.current.Load()
	m.current.Store(cfg)
	if prev == nil || !configsEqual(prev, cfg) {
		m.mu.Lock()
		callbacks := append([]func(*Config){}, m.callbacks...)
		m.mu.Unlock()
		for _, cb := range callbacks {
			cb(cfg)
		}
	}
	return nil
}

// OnChange registers a callback invoked whenever Reload applies a
// configuration that differs from the previous one.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Close stops watching every source and releases resources; safe to call
// more than once.
func (m *Manager) Close(_ context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		if m.cancel != nil {
			m.cancel()
		}
		sources := m.sources
		m.mu.Unlock()
		for _, src := range sources {
			if cerr := src.Close(); cerr != nil {
				err = cerr
			}
		}
	})
	return err
}

func configsEqual(a, b *Config) bool {
	return equalConfig(a, b)
}
