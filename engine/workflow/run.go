package workflow

import (
	"time"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/segmentio/ksuid"
)

// Run is a WorkflowRun (spec §3): uid/Name/Workflow/Source/StartedAt are
// Immutable once created (spec §4.8, §8 scenario 6: updating a run never
// moves started_at); State transitions pending -> running -> one of the
// terminal states {finished, failed}. UpdatedAt is refreshed on every
// store-level update.
type Run struct {
	UID        string          `json:"uid"        immutable:"true"`
	Name       string          `json:"name"        immutable:"true"`
	Workflow   string          `json:"workflow"    immutable:"true"`
	Namespace  string          `json:"namespace"`
	Source     core.SourceType `json:"source"      immutable:"true"`
	StartedAt  time.Time       `json:"started_at"  immutable:"true"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Result     any             `json:"result,omitempty"`
	State      core.StatusType `json:"state"`
}

// NewRun creates a Run in the pending state with a generated uid/name.
// Name generation uses a KSUID so names sort chronologically, matching the
// teacher's convention of k-sortable identifiers for high-write entities.
func NewRun(workflow, namespace string, source core.SourceType) *Run {
	id := ksuid.New().String()
	now := time.Now()
	return &Run{
		UID:       id,
		Name:      "run-" + id,
		Workflow:  workflow,
		Namespace: namespace,
		Source:    source,
		StartedAt: now,
		UpdatedAt: now,
		State:     core.StatusPending,
	}
}

// SetRunning transitions the run to running; called once the run record has
// been persisted (if retained) and before WorkflowStartedEvent is published.
func (r *Run) SetRunning() {
	r.State = core.StatusRunning
	r.UpdatedAt = time.Now()
}

// SetFinished transitions the run to a terminal state, recording result and
// finished_at (spec §4.3: "run.set_finished(result, finished)" /
// "run.set_finished((error_kind, message), failed)").
func (r *Run) SetFinished(result any, state core.StatusType) {
	r.Result = result
	r.State = state
	r.FinishedAt = time.Now()
	r.UpdatedAt = r.FinishedAt
}
