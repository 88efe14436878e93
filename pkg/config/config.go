// Package config provides the process-wide, layered configuration used by
// every long-lived component of the server: listen address, event bus
// broker selection, executor pool sizing, resource store backend, trigger
// tick cadence, and artifact storage root.
package config

import (
	"encoding/json"
	"time"
)

// SensitiveString is a string value that is never rendered in logs, errors,
// or JSON output, even though the underlying value is still usable by code
// that explicitly asks for it via Value().
type SensitiveString string

// String implements fmt.Stringer, redacting the value.
func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value returns the unredacted underlying string.
func (s SensitiveString) Value() string {
	return string(s)
}

// MarshalJSON renders the value redacted, never leaking secrets into
// serialized configuration snapshots.
func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts a plain JSON string as the underlying value.
func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}

// ServerConfig controls the resource API listener (§6).
type ServerConfig struct {
	Host string `koanf:"host"  json:"host"`
	Port int    `koanf:"port"  json:"port"`
}

// BrokerConfig selects and configures the event bus broker (§4.5).
type BrokerConfig struct {
	Kind string          `koanf:"kind" json:"kind"` // "memory" | "nats"
	URL  SensitiveString `koanf:"url"  json:"url"`
}

// ExecutorConfig controls the local executor's worker pool and cluster
// memory IPC endpoint (§4.4.1).
type ExecutorConfig struct {
	Kind                string        `koanf:"kind"                   json:"kind"` // "local" | "distributed"
	Workers             int           `koanf:"workers"                json:"workers"`
	UseProcesses        bool          `koanf:"use_processes"          json:"use_processes"`
	ClusterMemorySocket string        `koanf:"cluster_memory_socket"  json:"cluster_memory_socket"`
	RedisURL            SensitiveString `koanf:"redis_url"            json:"redis_url"`
	DialTimeout         time.Duration `koanf:"dial_timeout"           json:"dial_timeout"`
}

// StoreConfig selects and configures the resource store backend (§4.8).
type StoreConfig struct {
	Kind            string          `koanf:"kind"             json:"kind"` // "memory" | "postgres"
	DSN             SensitiveString `koanf:"dsn"              json:"dsn"`
	RunRetention    time.Duration   `koanf:"run_retention"    json:"run_retention"` // 0 disables retention
	MigrationsTable string          `koanf:"migrations_table" json:"migrations_table"`
}

// TriggerConfig controls the schedule trigger loop (§4.7).
type TriggerConfig struct {
	ScheduleTickInterval time.Duration `koanf:"schedule_tick_interval" json:"schedule_tick_interval"`
}

// ArtifactConfig controls the filesystem-backed object store (§6).
type ArtifactConfig struct {
	BasePath string `koanf:"base_path" json:"base_path"`
}

// LogConfig controls process-wide logging.
type LogConfig struct {
	Level string `koanf:"level" json:"level"`
	JSON  bool   `koanf:"json"  json:"json"`
}

// Config is the root, immutable-once-loaded configuration tree.
type Config struct {
	Server   ServerConfig   `koanf:"server"   json:"server"`
	Broker   BrokerConfig   `koanf:"broker"   json:"broker"`
	Executor ExecutorConfig `koanf:"executor" json:"executor"`
	Store    StoreConfig    `koanf:"store"    json:"store"`
	Trigger  TriggerConfig  `koanf:"trigger"  json:"trigger"`
	Artifact ArtifactConfig `koanf:"artifact" json:"artifact"`
	Log      LogConfig      `koanf:"log"      json:"log"`
}

// Default returns the built-in baseline configuration, used as the first,
// lowest-precedence layer every Manager.Load call merges on top of.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 5001},
		Broker: BrokerConfig{Kind: "memory"},
		Executor: ExecutorConfig{
			Kind:                "local",
			Workers:             0, // 0 means cores-1, resolved at startup
			UseProcesses:        false,
			ClusterMemorySocket: "",
			DialTimeout:         5 * time.Second,
		},
		Store: StoreConfig{
			Kind:            "memory",
			RunRetention:    0,
			MigrationsTable: "fluxweave_migrations",
		},
		Trigger: TriggerConfig{ScheduleTickInterval: 5 * time.Second},
		Artifact: ArtifactConfig{
			BasePath: ".fluxweave/artifacts",
		},
		Log: LogConfig{Level: "info", JSON: false},
	}
}
