// Package pipeline implements the Stage Executor and Pipeline Loop: the
// core six-stage (plus ERROR) state machine that drives plugins to turn a
// user message into a response.
package pipeline

import (
	"fmt"
	"time"

	"github.com/fractalworks/agentpipe/runtime/resource"
	"github.com/fractalworks/agentpipe/runtime/state"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// Context is the sole state-mutation surface plugins are given. A plugin
// must never reach into PipelineState directly; everything it can do
// during a stage visit is a method here.
type Context struct {
	state     *state.PipelineState
	resources *resource.Container
	stage     types.Stage
	pluginName string

	toolSeq int
}

// NewContext scopes a fresh Context to one plugin's visit to one stage.
func NewContext(s *state.PipelineState, resources *resource.Container, stage types.Stage, pluginName string) *Context {
	return &Context{state: s, resources: resources, stage: stage, pluginName: pluginName}
}

// AddConversationEntry appends one entry to the conversation log.
func (c *Context) AddConversationEntry(content any, role types.Role, metadata map[string]any) {
	c.state.AddConversationEntry(types.ConversationEntry{
		Content:   content,
		Role:      role,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}

// GetConversationHistory returns a read-only snapshot of the conversation
// log.
func (c *Context) GetConversationHistory() []types.ConversationEntry {
	return c.state.ConversationSnapshot()
}

// SetResponse assigns the pipeline's final response. Must be called at
// most once per run except during controlled ERROR recovery.
func (c *Context) SetResponse(value any) {
	c.state.SetResponse(value)
}

// ExecuteTool queues a tool call for the Stage Executor's post-plugin
// drain and returns the deterministic result key the plugin should use to
// read the result back via stage_results.
func (c *Context) ExecuteTool(name string, params map[string]any) string {
	c.toolSeq++
	resultKey := fmt.Sprintf("%s.%s.%d", c.pluginName, name, c.toolSeq)
	c.state.PendingToolCalls = append(c.state.PendingToolCalls, types.ToolCall{
		Name:      name,
		Params:    params,
		ResultKey: resultKey,
	})
	return resultKey
}

// Think writes a temporary-thought value shared across iterations of this
// message.
func (c *Context) Think(key string, value any) {
	c.state.Think(key, value)
}

// GetThink reads a temporary-thought value.
func (c *Context) GetThink(key string) (any, bool) {
	return c.state.GetThink(key)
}

// GetStageResult reads a value a tool drain stored under key.
func (c *Context) GetStageResult(key string) (any, bool) {
	v, ok := c.state.StageResults[key]
	return v, ok
}

// GetResource looks up a resource from the Container; nil if absent.
func (c *Context) GetResource(name string) resource.Resource {
	if c.resources == nil {
		return nil
	}
	return c.resources.Get(name)
}

// JumpToStage sets the next-stage hint, breaking the current stage loop
// after the calling plugin returns.
func (c *Context) JumpToStage(stage types.Stage) {
	c.state.JumpToStage(stage)
}

// SkipStage marks stage to be skipped the next time it is reached.
func (c *Context) SkipStage(stage types.Stage) {
	c.state.SkipStage(stage)
}

func (c *Context) PipelineID() string      { return c.state.PipelineID }
func (c *Context) RequestID() string       { return c.state.RequestID }
func (c *Context) UserID() string          { return c.state.UserID }
func (c *Context) CurrentStage() types.Stage { return c.stage }
