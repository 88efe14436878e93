// Package trigger implements the trigger engine (spec §4.7): condition
// rules evaluated against every bus event, and cron schedules ticked on a
// background loop, both dispatching through a shared action registry.
package trigger

import (
	"github.com/fluxweave/fluxweave/engine/workflow"
)

// Type distinguishes the two TriggerRuleResource variants.
type Type string

const (
	TypeCondition Type = "condition"
	TypeSchedule  Type = "schedule"
)

// LastRunAnnotation is the annotation key the trigger engine mutates on
// every fire, matching the original's "flowdapt.ai/last_run" convention
// (kept as a private-ish namespaced string rather than renamed to this
// project, since it's a stable wire-compatible annotation key, not a
// teacher product reference).
const LastRunAnnotation = "fluxweave.dev/last_run"

// Action names the bound action and the parameters it's invoked with
// (spec §3 TriggerRuleResource.spec.action).
type Action struct {
	Target     string
	Parameters map[string]any
}

// Spec is a TriggerRuleResource's spec block. Rule holds either a
// condition expression tree (map[string]any) when Type == TypeCondition,
// or a list of cron strings when Type == TypeSchedule.
type Spec struct {
	Type   Type
	Rule   any
	Action Action
}

// ConditionRule type-asserts Spec.Rule for a condition trigger.
func (s Spec) ConditionRule() (map[string]any, bool) {
	m, ok := s.Rule.(map[string]any)
	return m, ok
}

// ScheduleRule type-asserts Spec.Rule for a schedule trigger.
func (s Spec) ScheduleRule() ([]string, bool) {
	list, ok := s.Rule.([]string)
	return list, ok
}

// Resource is a TriggerRuleResource (spec §3).
type Resource struct {
	Kind     string
	Metadata workflow.Metadata
	Spec     Spec
}

// NewResource builds a Resource with Kind fixed to "trigger_rule".
func NewResource(name string, spec Spec) *Resource {
	if spec.Action.Parameters == nil {
		spec.Action.Parameters = make(map[string]any)
	}
	return &Resource{
		Kind: "trigger_rule",
		Metadata: workflow.Metadata{
			Name:        name,
			Annotations: make(map[string]string),
			Labels:      make(map[string]string),
		},
		Spec: spec,
	}
}
