package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/memory"
	"github.com/fractalworks/agentpipe/runtime/pipeline"
	"github.com/fractalworks/agentpipe/runtime/plugin"
	"github.com/fractalworks/agentpipe/runtime/resource"
	"github.com/fractalworks/agentpipe/runtime/tool"
	"github.com/fractalworks/agentpipe/runtime/types"
)

type echoOutputPlugin struct{}

func (echoOutputPlugin) Name() string                       { return "echo_output" }
func (echoOutputPlugin) Stages() []types.Stage               { return []types.Stage{types.StageOutput} }
func (echoOutputPlugin) Dependencies() []string              { return nil }
func (echoOutputPlugin) ValidateConfig(map[string]any) error { return nil }
func (echoOutputPlugin) Execute(ctx any) error {
	c := ctx.(*pipeline.Context)
	history := c.GetConversationHistory()
	c.SetResponse(history[0].Content)
	return nil
}

// toolInvokingPlugin calls a tool in DO; resultRespondingPlugin then reads
// the stage result in OUTPUT and responds with it.
type toolInvokingPlugin struct{}

func (toolInvokingPlugin) Name() string                       { return "tool_caller" }
func (toolInvokingPlugin) Stages() []types.Stage               { return []types.Stage{types.StageDo} }
func (toolInvokingPlugin) Dependencies() []string              { return nil }
func (toolInvokingPlugin) ValidateConfig(map[string]any) error { return nil }
func (toolInvokingPlugin) Execute(ctx any) error {
	ctx.(*pipeline.Context).ExecuteTool("reverse", map[string]any{"value": "abc"})
	return nil
}

type resultRespondingPlugin struct{}

func (resultRespondingPlugin) Name() string                       { return "result_responder" }
func (resultRespondingPlugin) Stages() []types.Stage               { return []types.Stage{types.StageOutput} }
func (resultRespondingPlugin) Dependencies() []string              { return nil }
func (resultRespondingPlugin) ValidateConfig(map[string]any) error { return nil }
func (resultRespondingPlugin) Execute(ctx any) error {
	c := ctx.(*pipeline.Context)
	v, ok := c.GetStageResult("tool_caller.reverse.1")
	if !ok {
		return fmt.Errorf("missing tool result")
	}
	c.SetResponse(v)
	return nil
}

type reverseTool struct{}

func (reverseTool) Name() string { return "reverse" }
func (reverseTool) Execute(params map[string]any) (any, error) {
	s := params["value"].(string)
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[len(s)-1-i]
	}
	return string(out), nil
}
func (reverseTool) Intents() []string { return nil }

// jumpingPlugin skips PARSE/THINK/DO/REVIEW entirely by jumping straight to
// OUTPUT from INPUT.
type jumpingPlugin struct{}

func (jumpingPlugin) Name() string                       { return "jumper" }
func (jumpingPlugin) Stages() []types.Stage               { return []types.Stage{types.StageInput} }
func (jumpingPlugin) Dependencies() []string              { return nil }
func (jumpingPlugin) ValidateConfig(map[string]any) error { return nil }
func (jumpingPlugin) Execute(ctx any) error {
	ctx.(*pipeline.Context).JumpToStage(types.StageOutput)
	return nil
}

type neverRespondingPlugin struct{}

func (neverRespondingPlugin) Name() string                       { return "stuck" }
func (neverRespondingPlugin) Stages() []types.Stage               { return []types.Stage{types.StageThink} }
func (neverRespondingPlugin) Dependencies() []string              { return nil }
func (neverRespondingPlugin) ValidateConfig(map[string]any) error { return nil }
func (neverRespondingPlugin) Execute(ctx any) error                { return nil }

func newLoopWithPlugins(t *testing.T, register func(r *plugin.Registry), maxIterations int) *pipeline.Loop {
	t.Helper()
	registry := plugin.NewRegistry()
	register(registry)
	registry.RegisterPluginForStage(pipeline.DefaultErrorPlugin{}, types.StageError)

	tools := tool.NewRegistry(4)
	tools.Add(reverseTool{})
	dispatcher := tool.NewDispatcher(tools)

	exec := pipeline.NewExecutor(registry, dispatcher, resource.NewContainer(), "")
	return pipeline.NewLoop(exec, pipeline.NewWorkflow(nil), maxIterations)
}

func TestLoop_Echo(t *testing.T) {
	loop := newLoopWithPlugins(t, func(r *plugin.Registry) {
		r.RegisterPluginForStage(echoOutputPlugin{}, types.StageOutput)
	}, 10)

	resp := loop.Run(context.Background(), "alice", "hello world", "")
	assert.Equal(t, "hello world", resp)
}

func TestLoop_ToolUse(t *testing.T) {
	loop := newLoopWithPlugins(t, func(r *plugin.Registry) {
		r.RegisterPluginForStage(toolInvokingPlugin{}, types.StageDo)
		r.RegisterPluginForStage(resultRespondingPlugin{}, types.StageOutput)
	}, 10)

	resp := loop.Run(context.Background(), "alice", "hello", "")
	assert.Equal(t, "cba", resp)
}

func TestLoop_Jump_SkipsIntermediateStages(t *testing.T) {
	loop := newLoopWithPlugins(t, func(r *plugin.Registry) {
		r.RegisterPluginForStage(jumpingPlugin{}, types.StageInput)
		r.RegisterPluginForStage(echoOutputPlugin{}, types.StageOutput)
	}, 10)

	resp := loop.Run(context.Background(), "alice", "jump target", "")
	assert.Equal(t, "jump target", resp)
}

func TestLoop_PluginFault_ProducesStructuredErrorResponse(t *testing.T) {
	loop := newLoopWithPlugins(t, func(r *plugin.Registry) {
		r.RegisterPluginForStage(&faultyPlugin{name: "broken"}, types.StageThink)
	}, 10)

	resp := loop.Run(context.Background(), "alice", "hello", "")
	errResp, ok := resp.(pipeline.StructuredError)
	require.True(t, ok)
	assert.Equal(t, "broken", errResp.Plugin)
	assert.Equal(t, string(pipeerrors.KindPluginExecution), errResp.Type)
}

func TestLoop_MaxIterations_ProducesErrorResponse(t *testing.T) {
	loop := newLoopWithPlugins(t, func(r *plugin.Registry) {
		r.RegisterPluginForStage(neverRespondingPlugin{}, types.StageThink)
	}, 3)

	resp := loop.Run(context.Background(), "alice", "hello", "")
	errResp, ok := resp.(pipeline.StructuredError)
	require.True(t, ok)
	assert.Equal(t, "max_iterations", errResp.Type)
}

func TestLoop_RunWithCheckpointKeyAndMemory(t *testing.T) {
	registry := plugin.NewRegistry()
	registry.RegisterPluginForStage(echoOutputPlugin{}, types.StageOutput)
	registry.RegisterPluginForStage(pipeline.DefaultErrorPlugin{}, types.StageError)

	tools := tool.NewRegistry(4)
	dispatcher := tool.NewDispatcher(tools)

	mem := memory.NewInMemory()
	resources := resource.NewContainer()
	resources.Register("memory", resource.LayerInterface, func(config map[string]any) (resource.Resource, error) {
		return mem, nil
	}, nil)
	require.NoError(t, resources.Build(context.Background()))

	exec := pipeline.NewExecutor(registry, dispatcher, resources, "memory")
	loop := pipeline.NewLoop(exec, pipeline.NewWorkflow(nil), 10)

	resp := loop.Run(context.Background(), "alice", "persisted hello", "chk1")
	assert.Equal(t, "persisted hello", resp)
}
