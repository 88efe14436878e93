// Package workflow implements the workflow graph compiler and runtime
// (spec §4.1, §4.3): compiling a WorkflowResource into a level-scheduled
// DAG and driving a single run end to end.
package workflow

import (
	"time"

	"github.com/fluxweave/fluxweave/engine/stage"
)

// Metadata is the envelope every Resource-family entity carries (spec §3).
// UID and CreatedAt are Immutable (spec §4.8): once a record exists, the
// resource store's update(doc, patch) preserves them regardless of what a
// patch carries. UpdatedAt is refreshed on every update.
type Metadata struct {
	UID         string            `json:"uid"                    immutable:"true"`
	Name        string            `json:"name"`
	CreatedAt   time.Time         `json:"created_at"             immutable:"true"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Resource is a WorkflowResource (spec §3): kind is always "workflow"; its
// spec carries the ordered stage list.
type Resource struct {
	Kind     string   `json:"kind"`
	Metadata Metadata `json:"metadata"`
	Spec     Spec     `json:"spec"`
}

// Spec holds the stage list for a WorkflowResource.
type Spec struct {
	Stages []stage.Stage `json:"stages"`
}

// NewResource builds a WorkflowResource with kind fixed to "workflow".
func NewResource(name string, stages []stage.Stage) *Resource {
	now := time.Now()
	return &Resource{
		Kind: "workflow",
		Metadata: Metadata{
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Spec: Spec{Stages: stages},
	}
}

// StageNames returns every stage name declared on the resource, in
// declaration order.
func (r *Resource) StageNames() []string {
	names := make([]string, len(r.Spec.Stages))
	for i, s := range r.Spec.Stages {
		names[i] = s.Name
	}
	return names
}
