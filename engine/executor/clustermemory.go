// Package executor implements the compute backend contract of spec §4.4: a
// polymorphic Executor that realizes lazy stage references, backed by a
// bounded worker pool and a shared cluster-memory key/value store.
package executor

import (
	"context"
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
)

// DefaultNamespace is used whenever a ClusterMemory caller omits one.
const DefaultNamespace = "default"

// ClusterMemory is the shared key/value store every worker in an Executor's
// pool can reach, regardless of backend (spec §4.4.1 "cluster memory").
type ClusterMemory interface {
	Get(ctx context.Context, key, namespace string) (any, error)
	Put(ctx context.Context, key string, value any, namespace string) error
	Delete(ctx context.Context, key, namespace string) error
	Clear(ctx context.Context) error
}

func resolveNamespace(namespace string) string {
	if namespace == "" {
		return DefaultNamespace
	}
	return namespace
}

func errKeyNotFound(key, namespace string) error {
	return core.NewError(
		fmt.Errorf("key %q not found in namespace %q", key, namespace),
		core.CodeResourceNotFound,
		map[string]any{"key": key, "namespace": namespace},
	)
}
