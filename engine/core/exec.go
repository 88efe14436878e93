package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// Base Execution
// -----------------------------------------------------------------------------

// Execution is the shared contract of a running WorkflowRun or stage attempt:
// enough state to report progress and compute a duration once it settles.
type Execution interface {
	StoreKey() []byte
	IsRunning() bool
	GetID() ID
	GetWorkflowID() string
	GetWorkflowExecID() ID
	GetComponent() ComponentType
	GetComponentID() string
	GetStatus() StatusType
	GetEnv() *EnvMap
	GetParentInput() *Input
	GetInput() *Input
	GetOutput() *Output
	GetError() *Error
	SetDuration()
	CalcDuration() time.Duration
}

// BaseExecution is embedded by WorkflowRun and stage-run records to share
// status bookkeeping and timing.
type BaseExecution struct {
	Component      ComponentType `json:"component"`
	WorkflowID     string        `json:"workflow_id"`
	WorkflowExecID ID            `json:"workflow_exec_id"`
	Status         StatusType    `json:"status"`
	ParentInput    *Input        `json:"parent_input,omitempty"`
	Input          *Input        `json:"input,omitempty"`
	Output         *Output       `json:"output,omitempty"`
	Env            *EnvMap       `json:"env,omitempty"`
	Error          *Error        `json:"error,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
}

func NewBaseExecution(
	workflowID string,
	workflowExecID ID,
	parentInput, input *Input,
	output *Output,
	env *EnvMap,
	err *Error,
) *BaseExecution {
	return &BaseExecution{
		WorkflowID:     workflowID,
		WorkflowExecID: workflowExecID,
		Status:         StatusPending,
		ParentInput:    parentInput,
		Input:          input,
		Output:         output,
		Env:            env,
		Error:          err,
		StartTime:      time.Now(),
	}
}

func (b *BaseExecution) StoreKey() []byte {
	return nil
}

func (b *BaseExecution) GetComponent() ComponentType {
	return b.Component
}

func (b *BaseExecution) GetID() ID {
	return MustNewID()
}

func (b *BaseExecution) GetComponentID() string {
	return ""
}

func (b *BaseExecution) GetWorkflowID() string {
	return b.WorkflowID
}

func (b *BaseExecution) GetWorkflowExecID() ID {
	return b.WorkflowExecID
}

func (b *BaseExecution) GetStatus() StatusType {
	return b.Status
}

func (b *BaseExecution) GetEnv() *EnvMap {
	return b.Env
}

func (b *BaseExecution) GetParentInput() *Input {
	return b.ParentInput
}

func (b *BaseExecution) GetInput() *Input {
	return b.Input
}

func (b *BaseExecution) GetOutput() *Output {
	return b.Output
}

func (b *BaseExecution) GetError() *Error {
	return b.Error
}

func (b *BaseExecution) IsRunning() bool {
	return b.Status == StatusRunning
}

func (b *BaseExecution) SetDuration() {
	b.EndTime = time.Now()
	b.Duration = b.CalcDuration()
}

func (b *BaseExecution) CalcDuration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}
