package config

import "context"

type configCtxKey struct{}

// ConfigCtxKey is the context.Value key a *Config is stored under.
var ConfigCtxKey = configCtxKey{}

// ContextWithConfig returns a new context carrying cfg.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ConfigCtxKey, cfg)
}

// FromContext extracts the *Config stored in ctx, falling back to the
// global configuration (which panics if Initialize was never called).
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ConfigCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return Get()
}
