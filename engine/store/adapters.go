package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fluxweave/fluxweave/engine/trigger"
	"github.com/fluxweave/fluxweave/engine/workflow"
)

// ResourceStore wires a BaseStorage into every consumer-facing interface
// the runtime/trigger layers depend on (workflow.Loader,
// workflow.ConfigMerger, workflow.RunStore, trigger.RuleStore), so a
// single backend (Memory or Postgres) backs the whole system instead of
// each package growing its own bespoke persistence.
type ResourceStore struct {
	backend BaseStorage
}

// NewResourceStore wraps backend (typically a *Memory, *Postgres, or a
// *Cached decorating either) with the domain-specific accessors below.
func NewResourceStore(backend BaseStorage) *ResourceStore {
	return &ResourceStore{backend: backend}
}

func encodeResource(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return m, nil
}

func decodeResource(raw any, target any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("decode resource: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode resource: %w", err)
	}
	return nil
}

// loadExisting looks up key and decodes it into target, reporting whether a
// record was found. A missing key is not an error: callers use the bool to
// distinguish a first write (stamp CreatedAt) from an update (merge
// Immutable fields and refresh UpdatedAt) per spec §4.8.
func (s *ResourceStore) loadExisting(ctx context.Context, key ResourceKey, target any) (bool, error) {
	raw, _, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := decodeResource(raw, target); err != nil {
		return false, err
	}
	return true, nil
}

// --- workflow.Loader ---

// GetWorkflow satisfies workflow.Loader: identifier is looked up first as
// a UID then as a name within namespace "default", matching the
// reference's "by name or uid" lookup (spec §4.3).
func (s *ResourceStore) GetWorkflow(ctx context.Context, identifier string) (*workflow.Resource, error) {
	raw, _, err := s.backend.Get(ctx, ResourceKey{Namespace: DefaultNamespace, Type: ResourceWorkflow, ID: identifier})
	if err != nil {
		return nil, err
	}
	var res workflow.Resource
	if err := decodeResource(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PutWorkflow stores a WorkflowResource, returning the new etag. An update
// to an existing record runs through the store's Immutable-field merge
// (spec §4.8): uid/created_at survive whatever res carries, and
// updated_at is refreshed.
func (s *ResourceStore) PutWorkflow(ctx context.Context, res *workflow.Resource) (string, error) {
	key := resourceKeyFor(ResourceWorkflow, res.Metadata.UID, res.Metadata.Name)
	now := time.Now()
	var existing workflow.Resource
	found, err := s.loadExisting(ctx, key, &existing)
	if err != nil {
		return "", err
	}
	if found {
		res = ApplyUpdate(&existing, res)
	} else {
		res.Metadata.CreatedAt = now
	}
	res.Metadata.UpdatedAt = now
	value, err := encodeResource(res)
	if err != nil {
		return "", err
	}
	return s.backend.Put(ctx, key, value, "")
}

// ListWorkflows returns every WorkflowResource in namespace "default".
func (s *ResourceStore) ListWorkflows(ctx context.Context) ([]*workflow.Resource, error) {
	keys, err := s.backend.List(ctx, DefaultNamespace, ResourceWorkflow)
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.Resource, 0, len(keys))
	for _, key := range keys {
		raw, _, err := s.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var res workflow.Resource
		if err := decodeResource(raw, &res); err != nil {
			continue
		}
		out = append(out, &res)
	}
	return out, nil
}

// DeleteWorkflow removes a WorkflowResource by identifier (uid or name).
func (s *ResourceStore) DeleteWorkflow(ctx context.Context, identifier string) error {
	return s.backend.Delete(ctx, ResourceKey{Namespace: DefaultNamespace, Type: ResourceWorkflow, ID: identifier})
}

// --- workflow.ConfigMerger ---

// ConfigResource is a ConfigResource (spec §3): a named map of config_data
// joined onto matching target resources by selector (spec §4.6).
type ConfigResource struct {
	Kind     string     `json:"kind"`
	Metadata ConfigMeta `json:"metadata"`
	Spec     ConfigSpec `json:"spec"`
}

// ConfigMeta is the Resource-family metadata block (spec §3 line 43) for a
// ConfigResource: uid and created_at are Immutable (spec §4.8), mirroring
// workflow.Metadata's tags.
type ConfigMeta struct {
	UID         string            `json:"uid"                    immutable:"true"`
	Name        string            `json:"name"`
	CreatedAt   time.Time         `json:"created_at"             immutable:"true"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Selector matches a target resource for the config join (spec §4.6).
// Type is "name" or "annotation"; Kind, when non-empty, additionally
// constrains the match to that target resource's kind.
type Selector struct {
	Type  string            `json:"type"`
	Kind  string            `json:"kind,omitempty"`
	Value map[string]string `json:"value"`
}

type ConfigSpec struct {
	Selector Selector       `json:"selector"`
	Data     map[string]any `json:"data"`
}

// PutConfig stores a ConfigResource, merging Immutable metadata fields and
// refreshing updated_at the same way PutWorkflow does.
func (s *ResourceStore) PutConfig(ctx context.Context, res *ConfigResource) (string, error) {
	key := ResourceKey{Namespace: DefaultNamespace, Type: ResourceConfig, ID: res.Metadata.Name}
	now := time.Now()
	var existing ConfigResource
	found, err := s.loadExisting(ctx, key, &existing)
	if err != nil {
		return "", err
	}
	if found {
		res = ApplyUpdate(&existing, res)
	} else {
		res.Metadata.CreatedAt = now
	}
	res.Metadata.UpdatedAt = now
	value, err := encodeResource(res)
	if err != nil {
		return "", err
	}
	return s.backend.Put(ctx, key, value, "")
}

// GetConfig looks up a ConfigResource by name.
func (s *ResourceStore) GetConfig(ctx context.Context, name string) (*ConfigResource, error) {
	raw, _, err := s.backend.Get(ctx, ResourceKey{Namespace: DefaultNamespace, Type: ResourceConfig, ID: name})
	if err != nil {
		return nil, err
	}
	var res ConfigResource
	if err := decodeResource(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListConfigs returns every ConfigResource.
func (s *ResourceStore) ListConfigs(ctx context.Context) ([]*ConfigResource, error) {
	keys, err := s.backend.List(ctx, DefaultNamespace, ResourceConfig)
	if err != nil {
		return nil, err
	}
	out := make([]*ConfigResource, 0, len(keys))
	for _, key := range keys {
		raw, _, err := s.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var res ConfigResource
		if err := decodeResource(raw, &res); err != nil {
			continue
		}
		out = append(out, &res)
	}
	return out, nil
}

// DeleteConfig removes a ConfigResource by name.
func (s *ResourceStore) DeleteConfig(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, ResourceKey{Namespace: DefaultNamespace, Type: ResourceConfig, ID: name})
}

// MergedConfigData implements workflow.ConfigMerger (spec §4.6): every
// ConfigResource whose selector matches wf is folded left to right,
// `a ∪ b` with last write wins, in List's declaration order.
func (s *ResourceStore) MergedConfigData(ctx context.Context, wf *workflow.Resource) (map[string]any, error) {
	keys, err := s.backend.List(ctx, DefaultNamespace, ResourceConfig)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any)
	for _, key := range keys {
		raw, _, err := s.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var cfg ConfigResource
		if err := decodeResource(raw, &cfg); err != nil {
			continue
		}
		if !selectorMatches(cfg.Spec.Selector, wf.Kind, wf.Metadata) {
			continue
		}
		for k, v := range cfg.Spec.Data {
			merged[k] = v
		}
	}
	return merged, nil
}

func selectorMatches(sel Selector, targetKind string, meta workflow.Metadata) bool {
	if sel.Kind != "" && sel.Kind != targetKind {
		return false
	}
	switch sel.Type {
	case "name":
		return sel.Value["name"] == meta.Name
	case "annotation":
		for k, v := range sel.Value {
			if meta.Annotations[k] != v {
				return false
			}
		}
		return len(sel.Value) > 0
	default:
		return false
	}
}

// --- workflow.RunStore ---

// SaveRun implements workflow.RunStore. uid/name/workflow/source/started_at
// are Immutable (spec §8 scenario 6): a re-save that carries a different
// started_at than the stored record is overruled, and updated_at is
// refreshed on every call.
func (s *ResourceStore) SaveRun(ctx context.Context, run *workflow.Run) error {
	key := ResourceKey{Namespace: run.Namespace, Type: ResourceRun, ID: run.UID}
	var existing workflow.Run
	found, err := s.loadExisting(ctx, key, &existing)
	if err != nil {
		return err
	}
	if found {
		run = ApplyUpdate(&existing, run)
	}
	run.UpdatedAt = time.Now()
	value, err := encodeResource(run)
	if err != nil {
		return err
	}
	_, err = s.backend.Put(ctx, key, value, "")
	return err
}

// GetRun looks up a previously saved run by UID within namespace.
func (s *ResourceStore) GetRun(ctx context.Context, namespace, uid string) (*workflow.Run, error) {
	raw, _, err := s.backend.Get(ctx, ResourceKey{Namespace: namespace, Type: ResourceRun, ID: uid})
	if err != nil {
		return nil, err
	}
	var run workflow.Run
	if err := decodeResource(raw, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRun removes a previously saved run by UID within namespace.
func (s *ResourceStore) DeleteRun(ctx context.Context, namespace, uid string) error {
	return s.backend.Delete(ctx, ResourceKey{Namespace: namespace, Type: ResourceRun, ID: uid})
}

// ListRunsByWorkflow returns every retained run of workflowName within
// namespace, most-recently-started first.
func (s *ResourceStore) ListRunsByWorkflow(ctx context.Context, namespace, workflowName string) ([]*workflow.Run, error) {
	keys, err := s.backend.List(ctx, namespace, ResourceRun)
	if err != nil {
		return nil, err
	}
	out := make([]*workflow.Run, 0, len(keys))
	for _, key := range keys {
		raw, _, err := s.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var run workflow.Run
		if err := decodeResource(raw, &run); err != nil {
			continue
		}
		if run.Workflow != workflowName {
			continue
		}
		out = append(out, &run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// --- trigger.RuleStore ---

// PutTriggerRule stores a TriggerRuleResource, merging Immutable metadata
// fields and refreshing updated_at the same way PutWorkflow does. Note that
// SetLastRun mutates annotations on the caller's own rule and passes that
// same pointer through here, so the merge must not clobber the
// last_run annotation it just set — annotations aren't tagged Immutable,
// so ApplyUpdate leaves them alone.
func (s *ResourceStore) PutTriggerRule(ctx context.Context, res *trigger.Resource) (string, error) {
	key := resourceKeyFor(ResourceTriggerRule, res.Metadata.UID, res.Metadata.Name)
	now := time.Now()
	var existing trigger.Resource
	found, err := s.loadExisting(ctx, key, &existing)
	if err != nil {
		return "", err
	}
	if found {
		res = ApplyUpdate(&existing, res)
	} else {
		res.Metadata.CreatedAt = now
	}
	res.Metadata.UpdatedAt = now
	value, err := encodeResource(res)
	if err != nil {
		return "", err
	}
	return s.backend.Put(ctx, key, value, "")
}

// GetTriggerRule looks up a TriggerRuleResource by identifier (uid or name).
func (s *ResourceStore) GetTriggerRule(ctx context.Context, identifier string) (*trigger.Resource, error) {
	raw, _, err := s.backend.Get(ctx, ResourceKey{Namespace: DefaultNamespace, Type: ResourceTriggerRule, ID: identifier})
	if err != nil {
		return nil, err
	}
	var res trigger.Resource
	if err := decodeResource(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTriggerRules returns every TriggerRuleResource, regardless of type.
func (s *ResourceStore) ListTriggerRules(ctx context.Context) ([]*trigger.Resource, error) {
	keys, err := s.backend.List(ctx, DefaultNamespace, ResourceTriggerRule)
	if err != nil {
		return nil, err
	}
	out := make([]*trigger.Resource, 0, len(keys))
	for _, key := range keys {
		raw, _, err := s.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var res trigger.Resource
		if err := decodeResource(raw, &res); err != nil {
			continue
		}
		out = append(out, &res)
	}
	return out, nil
}

// DeleteTriggerRule removes a TriggerRuleResource by identifier (uid or name).
func (s *ResourceStore) DeleteTriggerRule(ctx context.Context, identifier string) error {
	return s.backend.Delete(ctx, ResourceKey{Namespace: DefaultNamespace, Type: ResourceTriggerRule, ID: identifier})
}

// ListConditionTriggers implements trigger.RuleStore.
func (s *ResourceStore) ListConditionTriggers(ctx context.Context) ([]*trigger.Resource, error) {
	return s.listTriggers(ctx, trigger.TypeCondition)
}

// ListScheduleTriggers implements trigger.RuleStore.
func (s *ResourceStore) ListScheduleTriggers(ctx context.Context) ([]*trigger.Resource, error) {
	return s.listTriggers(ctx, trigger.TypeSchedule)
}

func (s *ResourceStore) listTriggers(ctx context.Context, typ trigger.Type) ([]*trigger.Resource, error) {
	keys, err := s.backend.List(ctx, DefaultNamespace, ResourceTriggerRule)
	if err != nil {
		return nil, err
	}
	var out []*trigger.Resource
	for _, key := range keys {
		raw, _, err := s.backend.Get(ctx, key)
		if err != nil {
			continue
		}
		var res trigger.Resource
		if err := decodeResource(raw, &res); err != nil {
			continue
		}
		if res.Spec.Type != typ {
			continue
		}
		out = append(out, &res)
	}
	return out, nil
}

// SetLastRun implements trigger.RuleStore: it persists rule's mutated
// annotations.last_run back to the backend so a future Get reflects it.
func (s *ResourceStore) SetLastRun(ctx context.Context, rule *trigger.Resource, at time.Time) error {
	if rule.Metadata.Annotations == nil {
		rule.Metadata.Annotations = make(map[string]string)
	}
	rule.Metadata.Annotations[trigger.LastRunAnnotation] = at.UTC().Format(time.RFC3339)
	_, err := s.PutTriggerRule(ctx, rule)
	return err
}

func resourceKeyFor(typ ResourceType, uid, name string) ResourceKey {
	id := uid
	if id == "" {
		id = name
	}
	return ResourceKey{Namespace: DefaultNamespace, Type: typ, ID: id}
}
