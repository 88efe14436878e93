package core

// Error codes for the taxonomy in spec §7. Every core.Error raised by the
// workflow/executor/bus/store/trigger subsystems uses one of these as its
// Code so API handlers and callers can switch on a stable string.
const (
	CodeValidationError         = "ValidationError"
	CodeResourceNotFound        = "ResourceNotFound"
	CodeConflict                = "Conflict"
	CodeWriteError              = "WriteError"
	CodeWorkflowExecutionError  = "WorkflowExecutionError"
	CodeCyclicDependency        = "CyclicDependency"
	CodeExecutorUnavailable     = "ExecutorUnavailable"
	CodeResourceExhausted       = "ResourceExhausted"
	CodeBrokerError             = "BrokerError"
	CodeSchemaMismatch          = "SchemaMismatch"
)
