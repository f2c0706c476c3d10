package tool

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/metrics"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// Dispatcher drains a plugin's queued tool calls with bounded concurrency,
// preserving scheduling order in the results it writes back.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher constructs a Dispatcher backed by registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// callOutcome is one tool call's result, keyed by its position in the
// scheduling order so completion order (which may differ under
// concurrency) never affects what gets applied to state.
type callOutcome struct {
	call   types.ToolCall
	value  any
	err    error
}

// AppliedEntry is one system-role conversation entry the drain produced,
// alongside the stage-results key it should be stored under.
type AppliedEntry struct {
	ResultKey string
	Value     any
	Entry     types.ConversationEntry
}

// Drain runs calls concurrently, bounded by the registry's concurrency
// limit, and returns the entries to apply in scheduling order. If any call
// fails, entries for calls at or after its position are discarded and the
// returned FailureInfo is populated; calls already applied (strictly
// before the failing position) are still returned.
func (d *Dispatcher) Drain(ctx context.Context, calls []types.ToolCall, stage types.Stage, pluginName string) ([]AppliedEntry, *types.FailureInfo) {
	if len(calls) == 0 {
		return nil, nil
	}

	outcomes := make([]callOutcome, len(calls))
	var g errgroup.Group
	g.SetLimit(d.registry.ConcurrencyLimit())

	for i, call := range calls {
		i, call := i, call
		outcomes[i].call = call
		g.Go(func() error {
			t := d.registry.Get(call.Name)
			if t == nil {
				outcomes[i].err = pipeerrors.NewToolExecutionError(call.Name, fmt.Errorf("tool not registered"))
				return nil
			}
			if err := ValidateParams(t, call.Params); err != nil {
				outcomes[i].err = pipeerrors.NewToolExecutionError(call.Name, err)
				return nil
			}
			metrics.ToolDrainConcurrency.Inc()
			result, err := t.Execute(call.Params)
			metrics.ToolDrainConcurrency.Dec()
			if err != nil {
				outcomes[i].err = pipeerrors.NewToolExecutionError(call.Name, err)
				return nil
			}
			outcomes[i].value = result
			return nil
		})
	}
	_ = g.Wait() // worker funcs never return an error; failures live in outcomes

	var applied []AppliedEntry
	for _, o := range outcomes {
		if o.err != nil {
			return applied, &types.FailureInfo{
				Stage:        stage,
				PluginName:   pluginName,
				ErrorType:    "tool_error",
				ErrorMessage: o.err.Error(),
			}
		}
		applied = append(applied, AppliedEntry{
			ResultKey: o.call.ResultKey,
			Value:     o.value,
			Entry: types.ConversationEntry{
				Role:      types.RoleSystem,
				Content:   fmt.Sprintf("Tool result: %v", o.value),
				Timestamp: time.Now(),
				Metadata: map[string]any{
					"tool_name": o.call.Name,
					"stage":     stage.String(),
				},
			},
		})
	}
	return applied, nil
}
