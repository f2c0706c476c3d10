package errors

import "fmt"

// Kind names the concept-level error classes a plugin, tool, or resource
// fault is translated into. These match the FailureInfo.error_type values
// the Stage Executor records.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindPluginExecution Kind = "plugin_error"
	KindToolExecution  Kind = "tool_error"
	KindResource       Kind = "resource_error"
	KindPipeline       Kind = "pipeline_error"
	KindCircuitBreaker Kind = "circuit_breaker"
	KindSandbox        Kind = "sandbox_error"
)

// ValidationError reports that inputs or configuration violate a declared
// schema. Recoverable.
type ValidationError struct {
	*ContextualError
}

func NewValidationError(operation string, cause error) *ValidationError {
	return &ValidationError{New("validation", operation, cause)}
}

func (e *ValidationError) Kind() Kind { return KindValidation }

// PluginExecutionError wraps an uncaught error raised inside a plugin's
// Execute method.
type PluginExecutionError struct {
	*ContextualError
	PluginName string
	Stage      string
}

func NewPluginExecutionError(pluginName, stage string, cause error) *PluginExecutionError {
	return &PluginExecutionError{
		ContextualError: New("plugin", "execute", cause),
		PluginName:      pluginName,
		Stage:           stage,
	}
}

func (e *PluginExecutionError) Kind() Kind { return KindPluginExecution }

func (e *PluginExecutionError) Error() string {
	return fmt.Sprintf("plugin %q failed in stage %q: %v", e.PluginName, e.Stage, e.Cause)
}

// ToolExecutionError reports that a tool dispatch failed: missing tool, bad
// params, or a tool-raised error.
type ToolExecutionError struct {
	*ContextualError
	ToolName string
}

func NewToolExecutionError(toolName string, cause error) *ToolExecutionError {
	return &ToolExecutionError{
		ContextualError: New("tool", "execute", cause),
		ToolName:        toolName,
	}
}

func (e *ToolExecutionError) Kind() Kind { return KindToolExecution }

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Cause)
}

// ResourceError reports that a resource is unavailable, unhealthy, or
// misconfigured.
type ResourceError struct {
	*ContextualError
	ResourceName string
}

func NewResourceError(resourceName, operation string, cause error) *ResourceError {
	return &ResourceError{
		ContextualError: New("resource", operation, cause),
		ResourceName:    resourceName,
	}
}

func (e *ResourceError) Kind() Kind { return KindResource }

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %q: %s: %v", e.ResourceName, e.Operation, e.Cause)
}

// PipelineError reports a structural problem in the loop itself: an unknown
// stage, a dependency cycle, or the max-iterations guard.
type PipelineError struct {
	*ContextualError
}

func NewPipelineError(operation string, cause error) *PipelineError {
	return &PipelineError{New("pipeline", operation, cause)}
}

func (e *PipelineError) Kind() Kind { return KindPipeline }

// CircuitBreakerTripped reports that an upstream breaker refused the call.
type CircuitBreakerTripped struct {
	*ContextualError
}

func NewCircuitBreakerTripped(operation string, cause error) *CircuitBreakerTripped {
	return &CircuitBreakerTripped{New("circuit_breaker", operation, cause)}
}

func (e *CircuitBreakerTripped) Kind() Kind { return KindCircuitBreaker }

// SandboxError reports that a plugin violated a declared resource
// whitelist. Always fatal; must not trigger recovery strategies.
type SandboxError struct {
	*ContextualError
}

func NewSandboxError(operation string, cause error) *SandboxError {
	return &SandboxError{New("sandbox", operation, cause)}
}

func (e *SandboxError) Kind() Kind { return KindSandbox }

// Classified is implemented by every taxonomy error so the Stage Executor
// can recover its error_type without a type switch per call site.
type Classified interface {
	error
	Kind() Kind
}

var (
	_ Classified = (*ValidationError)(nil)
	_ Classified = (*PluginExecutionError)(nil)
	_ Classified = (*ToolExecutionError)(nil)
	_ Classified = (*ResourceError)(nil)
	_ Classified = (*PipelineError)(nil)
	_ Classified = (*CircuitBreakerTripped)(nil)
	_ Classified = (*SandboxError)(nil)
)
