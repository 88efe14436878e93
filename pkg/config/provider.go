package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// SourceType names the kind of a Source, surfaced in diagnostics.
type SourceType string

const (
	SourceTypeDefault SourceType = "default"
	SourceTypeYAML    SourceType = "yaml"
	SourceTypeEnv     SourceType = "env"
	SourceTypeCLI     SourceType = "cli"
)

// Source is one layer of configuration, loaded and optionally watched for
// external changes (a YAML file on disk, environment variables, CLI flags).
type Source interface {
	Load() (map[string]any, error)
	Watch(ctx context.Context, onChange func()) error
	Type() SourceType
	Close() error
}

// Provider is a constructor for a Source; Manager.Load accepts a list of
// providers applied left-to-right (later providers override earlier ones).
type Provider = Source

type defaultProvider struct{}

// NewDefaultProvider returns the built-in baseline configuration as a Source.
func NewDefaultProvider() Provider {
	return &defaultProvider{}
}

func (d *defaultProvider) Load() (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return k.Raw(), nil
}

func (d *defaultProvider) Watch(_ context.Context, _ func()) error { return nil }
func (d *defaultProvider) Type() SourceType                        { return SourceTypeDefault }
func (d *defaultProvider) Close() error                             { return nil }

type yamlProvider struct {
	path string
}

// NewYAMLProvider reads configuration from a YAML file on disk.
func NewYAMLProvider(path string) Provider {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := readFile(y.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read yaml config %s: %w", y.path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml config %s: %w", y.path, err)
	}
	return raw, nil
}

func (y *yamlProvider) Watch(ctx context.Context, onChange func()) error {
	return watchFile(ctx, y.path, onChange)
}

func (y *yamlProvider) Type() SourceType { return SourceTypeYAML }
func (y *yamlProvider) Close() error     { return nil }

type envProvider struct {
	prefix string
}

// NewEnvProvider reads configuration from environment variables with the
// given prefix, e.g. FLUXWEAVE_SERVER_PORT -> server.port.
func NewEnvProvider(prefix string) Provider {
	return &envProvider{prefix: prefix}
}

func (e *envProvider) Load() (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: e.prefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyToPath(e.prefix, key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}
	return k.Raw(), nil
}

func (e *envProvider) Watch(_ context.Context, _ func()) error { return nil }
func (e *envProvider) Type() SourceType                        { return SourceTypeEnv }
func (e *envProvider) Close() error                             { return nil }

type cliProvider struct {
	values map[string]any
}

// NewCLIProvider wraps a pre-parsed map of dotted keys (e.g. "server.port")
// to values, as produced by a flag parser.
func NewCLIProvider(values map[string]any) Provider {
	return &cliProvider{values: values}
}

func (c *cliProvider) Load() (map[string]any, error) {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out, nil
}

func (c *cliProvider) Watch(_ context.Context, _ func()) error { return nil }
func (c *cliProvider) Type() SourceType                        { return SourceTypeCLI }
func (c *cliProvider) Close() error                             { return nil }
