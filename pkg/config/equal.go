package config

import "reflect"

// equalConfig reports whether two loaded configurations are equivalent,
// used by Manager.Reload to decide whether to fire change callbacks.
func equalConfig(a, b *Config) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(*a, *b)
}
