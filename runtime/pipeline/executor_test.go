package pipeline_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/pipeline"
	"github.com/fractalworks/agentpipe/runtime/plugin"
	"github.com/fractalworks/agentpipe/runtime/state"
	"github.com/fractalworks/agentpipe/runtime/tool"
	"github.com/fractalworks/agentpipe/runtime/types"
)

type respondingPlugin struct {
	name  string
	value any
}

func (p *respondingPlugin) Name() string                          { return p.name }
func (p *respondingPlugin) Stages() []types.Stage                  { return []types.Stage{types.StageOutput} }
func (p *respondingPlugin) Dependencies() []string                 { return nil }
func (p *respondingPlugin) ValidateConfig(map[string]any) error    { return nil }
func (p *respondingPlugin) Execute(ctx any) error {
	ctx.(*pipeline.Context).SetResponse(p.value)
	return nil
}

type toolCallingPlugin struct {
	name     string
	toolName string
}

func (p *toolCallingPlugin) Name() string                       { return p.name }
func (p *toolCallingPlugin) Stages() []types.Stage               { return []types.Stage{types.StageDo} }
func (p *toolCallingPlugin) Dependencies() []string              { return nil }
func (p *toolCallingPlugin) ValidateConfig(map[string]any) error { return nil }
func (p *toolCallingPlugin) Execute(ctx any) error {
	ctx.(*pipeline.Context).ExecuteTool(p.toolName, map[string]any{"value": "computed"})
	return nil
}

type faultyPlugin struct{ name string }

func (p *faultyPlugin) Name() string                       { return p.name }
func (p *faultyPlugin) Stages() []types.Stage               { return []types.Stage{types.StageThink} }
func (p *faultyPlugin) Dependencies() []string              { return nil }
func (p *faultyPlugin) ValidateConfig(map[string]any) error { return nil }
func (p *faultyPlugin) Execute(ctx any) error {
	return pipeerrors.NewPluginExecutionError(p.name, "THINK", fmt.Errorf("boom"))
}

type echoingStubTool struct{ name string }

func (t *echoingStubTool) Name() string { return t.name }
func (t *echoingStubTool) Execute(params map[string]any) (any, error) {
	return params["value"], nil
}
func (t *echoingStubTool) Intents() []string { return nil }

func newTestExecutor() (*pipeline.Executor, *plugin.Registry) {
	registry := plugin.NewRegistry()
	tools := tool.NewRegistry(4)
	dispatcher := tool.NewDispatcher(tools)
	exec := pipeline.NewExecutor(registry, dispatcher, nil, "")
	return exec, registry
}

func TestExecutor_RunStage_PluginSetsResponse(t *testing.T) {
	exec, registry := newTestExecutor()
	registry.RegisterPluginForStage(&respondingPlugin{name: "echo", value: "hi there"}, types.StageOutput)

	s := state.New("alice", "hello", time.Now())
	exec.RunStage(context.Background(), s, types.StageOutput, pipeline.NewWorkflow(nil))

	assert.True(t, s.HasResponse())
	assert.Equal(t, "hi there", s.Response)
}

func TestExecutor_RunStage_DrainsToolCallsIntoStageResults(t *testing.T) {
	registry := plugin.NewRegistry()
	tools := tool.NewRegistry(4)
	tools.Add(&echoingStubTool{name: "calc"})
	dispatcher := tool.NewDispatcher(tools)
	exec := pipeline.NewExecutor(registry, dispatcher, nil, "")

	registry.RegisterPluginForStage(&toolCallingPlugin{name: "caller", toolName: "calc"}, types.StageDo)

	s := state.New("alice", "hello", time.Now())
	exec.RunStage(context.Background(), s, types.StageDo, pipeline.NewWorkflow(nil))

	require.Empty(t, s.PendingToolCalls)
	assert.Equal(t, "computed", s.StageResults["caller.calc.1"])
}

func TestExecutor_RunStage_PluginFaultDispatchesToErrorStage(t *testing.T) {
	exec, registry := newTestExecutor()
	registry.RegisterPluginForStage(&faultyPlugin{name: "broken"}, types.StageThink)
	registry.RegisterPluginForStage(pipeline.DefaultErrorPlugin{}, types.StageError)

	s := state.New("alice", "hello", time.Now())
	exec.RunStage(context.Background(), s, types.StageThink, pipeline.NewWorkflow(nil))

	require.NotNil(t, s.FailureInfo)
	assert.Equal(t, string(pipeerrors.KindPluginExecution), s.FailureInfo.ErrorType)
	require.True(t, s.HasResponse())
	errResp, ok := s.Response.(pipeline.StructuredError)
	require.True(t, ok)
	assert.Equal(t, "broken", errResp.Plugin)
}

func TestExecutor_RunStage_WorkflowConstrainsPluginOrder(t *testing.T) {
	exec, registry := newTestExecutor()
	registry.RegisterPluginForStage(&respondingPlugin{name: "first", value: "first-wins"}, types.StageOutput)
	registry.RegisterPluginForStage(&respondingPlugin{name: "second", value: "second-wins"}, types.StageOutput)

	wf := pipeline.NewWorkflow(map[types.Stage][]string{types.StageOutput: {"second"}})

	s := state.New("alice", "hello", time.Now())
	exec.RunStage(context.Background(), s, types.StageOutput, wf)

	assert.Equal(t, "second-wins", s.Response)
}
