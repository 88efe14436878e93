package api

import (
	"time"

	"github.com/fluxweave/fluxweave/engine/core/httpdto"
	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/fluxweave/fluxweave/engine/workflow"
)

// MetadataDTO is the wire shape of workflow.Metadata / trigger resources'
// shared envelope.
type MetadataDTO struct {
	UID         string            `json:"uid,omitempty"`
	Name        string            `json:"name"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

func metadataToDTO(m workflow.Metadata) MetadataDTO {
	return MetadataDTO{
		UID:         m.UID,
		Name:        m.Name,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Annotations: m.Annotations,
		Labels:      m.Labels,
	}
}

// StageDTO is the request/response shape of a single workflow stage.
type StageDTO struct {
	Type        string             `json:"type"`
	Target      string             `json:"target"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Version     string             `json:"version,omitempty"`
	DependsOn   []string           `json:"depends_on,omitempty"`
	Options     map[string]any     `json:"options,omitempty"`
	Resources   ResourcesDTO       `json:"resources,omitempty"`
	Priority    int                `json:"priority,omitempty"`
	MapOn       string             `json:"map_on,omitempty"`
}

// ResourcesDTO is the request/response shape of a stage's declared
// resource requirements.
type ResourcesDTO struct {
	Cpus        float64            `json:"cpus,omitempty"`
	Gpus        float64            `json:"gpus,omitempty"`
	MemoryBytes float64            `json:"memory_bytes,omitempty"`
	Extras      map[string]float64 `json:"extras,omitempty"`
}

func stageFromDTO(d StageDTO) stage.Stage {
	return stage.Stage{
		Type:        stage.Kind(d.Type),
		Target:      d.Target,
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		DependsOn:   d.DependsOn,
		Options:     d.Options,
		Resources: stage.Resources{
			Cpus:        d.Resources.Cpus,
			Gpus:        d.Resources.Gpus,
			MemoryBytes: d.Resources.MemoryBytes,
			Extras:      d.Resources.Extras,
		},
		Priority: d.Priority,
		MapOn:    d.MapOn,
	}
}

func stageToDTO(s stage.Stage) StageDTO {
	return StageDTO{
		Type:        string(s.Type),
		Target:      s.Target,
		Name:        s.Name,
		Description: s.Description,
		Version:     s.Version,
		DependsOn:   s.DependsOn,
		Options:     s.Options,
		Resources: ResourcesDTO{
			Cpus:        s.Resources.Cpus,
			Gpus:        s.Resources.Gpus,
			MemoryBytes: s.Resources.MemoryBytes,
			Extras:      s.Resources.Extras,
		},
		Priority: s.Priority,
		MapOn:    s.MapOn,
	}
}

// WorkflowCreateRequest is the POST /workflows request body.
type WorkflowCreateRequest struct {
	Name   string     `json:"name" binding:"required"`
	Stages []StageDTO `json:"stages"`
}

// WorkflowDTO is a WorkflowResource as rendered to API clients.
type WorkflowDTO struct {
	Kind     string      `json:"kind"`
	Metadata MetadataDTO `json:"metadata"`
	Stages   []StageDTO  `json:"stages"`
}

func workflowToDTO(res *workflow.Resource) WorkflowDTO {
	stages := make([]StageDTO, len(res.Spec.Stages))
	for i, s := range res.Spec.Stages {
		stages[i] = stageToDTO(s)
	}
	return WorkflowDTO{
		Kind:     res.Kind,
		Metadata: metadataToDTO(res.Metadata),
		Stages:   stages,
	}
}

// ConfigCreateRequest is the POST /configs request body.
type ConfigCreateRequest struct {
	Name     string            `json:"name" binding:"required"`
	Selector SelectorDTO       `json:"selector"`
	Data     map[string]any    `json:"data"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// SelectorDTO mirrors store.Selector.
type SelectorDTO struct {
	Type  string            `json:"type"`
	Kind  string            `json:"kind,omitempty"`
	Value map[string]string `json:"value"`
}

// ConfigDTO is a ConfigResource as rendered to API clients.
type ConfigDTO struct {
	Kind     string         `json:"kind"`
	Metadata MetadataDTO    `json:"metadata"`
	Selector SelectorDTO    `json:"selector"`
	Data     map[string]any `json:"data"`
}

func configToDTO(res *store.ConfigResource) ConfigDTO {
	return ConfigDTO{
		Kind: res.Kind,
		Metadata: MetadataDTO{
			UID:         res.Metadata.UID,
			Name:        res.Metadata.Name,
			CreatedAt:   res.Metadata.CreatedAt,
			UpdatedAt:   res.Metadata.UpdatedAt,
			Annotations: res.Metadata.Annotations,
		},
		Selector: SelectorDTO{
			Type:  res.Spec.Selector.Type,
			Kind:  res.Spec.Selector.Kind,
			Value: res.Spec.Selector.Value,
		},
		Data: res.Spec.Data,
	}
}

// TriggerCreateRequest is the POST /triggers request body.
type TriggerCreateRequest struct {
	Name   string     `json:"name" binding:"required"`
	Type   string     `json:"type" binding:"required"`
	Rule   any        `json:"rule"`
	Action ActionDTO  `json:"action"`
}

// ActionDTO mirrors trigger.Action.
type ActionDTO struct {
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// TriggerDTO is a TriggerRuleResource as rendered to API clients.
type TriggerDTO struct {
	Kind     string      `json:"kind"`
	Metadata MetadataDTO `json:"metadata"`
	Type     string      `json:"type"`
	Rule     any         `json:"rule"`
	Action   ActionDTO   `json:"action"`
}

// RunRequest is the POST /workflows/{id}/run request body.
type RunRequest struct {
	Payload   map[string]any `json:"payload"`
	Namespace string         `json:"namespace,omitempty"`
	Wait      *bool          `json:"wait,omitempty"`
}

// waitOrDefault implements spec §6's "wait? (default true)".
func (r RunRequest) waitOrDefault() bool {
	if r.Wait == nil {
		return true
	}
	return *r.Wait
}

// RunDTO is a WorkflowRun as rendered to API clients.
type RunDTO struct {
	UID        string     `json:"uid"`
	Name       string     `json:"name"`
	Workflow   string     `json:"workflow"`
	Namespace  string     `json:"namespace"`
	Source     string     `json:"source"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     any        `json:"result,omitempty"`
	State      string     `json:"state"`
}

func runToDTO(run *workflow.Run) RunDTO {
	dto := RunDTO{
		UID:       run.UID,
		Name:      run.Name,
		Workflow:  run.Workflow,
		Namespace: run.Namespace,
		Source:    string(run.Source),
		StartedAt: run.StartedAt,
		UpdatedAt: run.UpdatedAt,
		Result:    run.Result,
		State:     string(run.State),
	}
	if !run.FinishedAt.IsZero() {
		dto.FinishedAt = &run.FinishedAt
	}
	return dto
}

// ListEnvelope wraps a collection with standard pagination metadata
// (engine/core/httpdto.PageInfoDTO), matching the naming convention its
// doc comment specifies for <Resource>ListResponse shapes.
type ListEnvelope struct {
	Items []any                `json:"items"`
	Page  httpdto.PageInfoDTO `json:"page"`
}

func newListEnvelope(items []any, limit int) ListEnvelope {
	return ListEnvelope{
		Items: items,
		Page:  httpdto.PageInfoDTO{Limit: limit, Total: len(items)},
	}
}
