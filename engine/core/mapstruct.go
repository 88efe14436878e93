package core

import (
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// AsMapDefault round-trips a struct through JSON to obtain a plain
// map[string]any, honoring `json` tags the same way the wire format does.
func AsMapDefault(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	return out, nil
}

// FromMapDefault decodes a map[string]any into T using `mapstructure` tags,
// weakly typing inputs (e.g. numeric strings decode into int fields).
func FromMapDefault[T any](m map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return out, fmt.Errorf("failed to decode map: %w", err)
	}
	return out, nil
}
