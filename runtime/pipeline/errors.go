package pipeline

import (
	"github.com/fractalworks/agentpipe/runtime/plugin"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// StructuredError is the shape every terminal failure response takes when
// no other handler resolves it: {error, message, error_id, plugin, stage,
// type}.
type StructuredError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	ErrorID string `json:"error_id"`
	Plugin  string `json:"plugin"`
	Stage   string `json:"stage"`
	Type    string `json:"type"`
}

// DefaultErrorResponse builds the structured failure object from a
// FailureInfo and the run's pipeline id, used both by the default
// ERROR-stage plugin and as the Loop's static fallback when ERROR itself
// produces no response.
func DefaultErrorResponse(pipelineID string, failure *types.FailureInfo) StructuredError {
	return StructuredError{
		Error:   failure.ErrorMessage,
		Message: "Unable to process request",
		ErrorID: pipelineID,
		Plugin:  failure.PluginName,
		Stage:   failure.Stage.String(),
		Type:    failure.ErrorType,
	}
}

// DefaultErrorPlugin is the ERROR-stage plugin registered by default: it
// writes DefaultErrorResponse as the pipeline's response whenever no
// application-specific ERROR plugin has already set one.
type DefaultErrorPlugin struct{}

func (DefaultErrorPlugin) Name() string              { return "default_error_handler" }
func (DefaultErrorPlugin) Stages() []types.Stage      { return []types.Stage{types.StageError} }
func (DefaultErrorPlugin) Dependencies() []string     { return nil }
func (DefaultErrorPlugin) ValidateConfig(map[string]any) error { return nil }

func (DefaultErrorPlugin) Execute(ctx any) error {
	c, ok := ctx.(*Context)
	if !ok {
		return nil
	}
	failure := c.state.FailureInfo
	if failure == nil || c.state.HasResponse() {
		return nil
	}
	c.SetResponse(DefaultErrorResponse(c.PipelineID(), failure))
	return nil
}

var _ plugin.Plugin = DefaultErrorPlugin{}
