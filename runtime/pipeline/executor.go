package pipeline

import (
	"context"
	"fmt"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/logger"
	"github.com/fractalworks/agentpipe/runtime/memory"
	"github.com/fractalworks/agentpipe/runtime/plugin"
	"github.com/fractalworks/agentpipe/runtime/resource"
	"github.com/fractalworks/agentpipe/runtime/state"
	"github.com/fractalworks/agentpipe/runtime/telemetry"
	"github.com/fractalworks/agentpipe/runtime/tool"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// StageValidator is a cross-cutting check run before every plugin in a
// given stage, independent of any single plugin's own ValidateConfig.
type StageValidator func(s *state.PipelineState) error

// Executor runs every plugin registered to one stage, in order, honoring
// failure isolation, automatic tool drain, and ERROR-stage dispatch.
type Executor struct {
	Plugins    *plugin.Registry
	Dispatcher *tool.Dispatcher
	Resources  *resource.Container
	MemoryName string // resource name to look up for conversation/thought persistence

	Validators map[types.Stage][]StageValidator
}

// NewExecutor constructs a Stage Executor over the given registries.
func NewExecutor(plugins *plugin.Registry, dispatcher *tool.Dispatcher, resources *resource.Container, memoryName string) *Executor {
	return &Executor{
		Plugins:    plugins,
		Dispatcher: dispatcher,
		Resources:  resources,
		MemoryName: memoryName,
		Validators: make(map[types.Stage][]StageValidator),
	}
}

func (e *Executor) memory() memory.Memory {
	if e.Resources == nil || e.MemoryName == "" {
		return nil
	}
	r := e.Resources.Get(e.MemoryName)
	if r == nil {
		return nil
	}
	m, _ := r.(memory.Memory)
	return m
}

// RunStage executes every plugin registered for stage, in registration
// order (or the workflow's override), then recursively dispatches to
// ERROR if a fault was recorded.
func (e *Executor) RunStage(ctx context.Context, s *state.PipelineState, stage types.Stage, wf *Workflow) {
	mem := e.memory()
	if mem != nil {
		if entries, err := mem.LoadConversation(s.PipelineID, s.UserID); err == nil && len(entries) > 0 {
			s.Conversation = entries
		}
		if thoughts, ok, err := mem.FetchPersistent("temporary_thoughts", s.UserID); err == nil && ok {
			if m, ok := thoughts.(map[string]any); ok {
				s.TemporaryThoughts = m
			}
		}
	}

	s.CurrentStage = stage

	names, workflowConstrained := wf.PluginNamesForStage(stage)
	var plugins []plugin.Plugin
	if workflowConstrained {
		for _, name := range names {
			if p := e.Plugins.GetByName(name); p != nil {
				plugins = append(plugins, p)
			}
		}
	} else {
		plugins = e.Plugins.PluginsForStage(stage)
	}

	for _, p := range plugins {
		for _, v := range e.Validators[stage] {
			if err := v(s); err != nil {
				s.FailureInfo = &types.FailureInfo{
					Stage:        stage,
					PluginName:   p.Name(),
					ErrorType:    "validation_error",
					ErrorMessage: err.Error(),
				}
				break
			}
		}
		if s.FailureInfo != nil {
			break
		}

		pctx := NewContext(s, e.Resources, stage, p.Name())
		_, span := telemetry.StartStageSpan(ctx, stage.String(), p.Name())

		logger.StageStart(stage.String(), p.Name())
		err := e.runPlugin(p, pctx)
		telemetry.EndWithError(span, err)

		if err != nil {
			s.FailureInfo = classifyFailure(stage, p.Name(), err)
			logger.StageFault(stage.String(), p.Name(), s.FailureInfo.ErrorType, err)
			break
		}
		logger.StageComplete(stage.String(), p.Name())

		if s.HasResponse() && stage == types.StageOutput {
			break
		}

		if len(s.PendingToolCalls) > 0 {
			applied, failure := e.Dispatcher.Drain(ctx, s.PendingToolCalls, stage, p.Name())
			for _, a := range applied {
				s.StageResults[a.ResultKey] = a.Value
				s.AddConversationEntry(a.Entry)
			}
			s.PendingToolCalls = nil
			if failure != nil {
				s.FailureInfo = failure
				break
			}
		}

		if s.FailureInfo != nil {
			break
		}
	}

	if s.FailureInfo != nil && stage != types.StageError {
		e.RunStage(ctx, s, types.StageError, wf)
		s.LastCompletedStage = types.StageError
	}

	if mem != nil {
		_ = mem.SaveConversation(s.PipelineID, s.Conversation, s.UserID)
		_ = mem.StorePersistent("temporary_thoughts", s.TemporaryThoughts, s.UserID)
	}
}

func (e *Executor) runPlugin(p plugin.Plugin, ctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Execute(ctx)
}

// classifyFailure translates a plugin or tool error into a FailureInfo,
// honoring the taxonomy's error_type when the error is one of the
// Classified kinds and falling back to a generic pipeline error otherwise.
func classifyFailure(stage types.Stage, pluginName string, err error) *types.FailureInfo {
	if classified, ok := err.(pipeerrors.Classified); ok {
		return &types.FailureInfo{
			Stage:        stage,
			PluginName:   pluginName,
			ErrorType:    string(classified.Kind()),
			ErrorMessage: classified.Error(),
		}
	}
	return &types.FailureInfo{
		Stage:        stage,
		PluginName:   pluginName,
		ErrorType:    "pipeline_error",
		ErrorMessage: err.Error(),
	}
}
