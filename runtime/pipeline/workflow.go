package pipeline

import (
	"fmt"
	"strings"

	"github.com/fractalworks/agentpipe/runtime/state"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// Predicate gates whether a stage should run at all for the given state.
// It MUST be a pure function of state and stage.
type Predicate func(stage types.Stage, s *state.PipelineState) bool

// Workflow is an immutable stage -> ordered plugin-name-list mapping, with
// an optional predicate per stage. Absent a Workflow, every plugin
// registered to a stage runs in that stage; with one, only the listed
// plugins run, in the listed order.
type Workflow struct {
	stageMap   map[types.Stage][]string
	predicates map[types.Stage]Predicate
}

// NewWorkflow constructs a Workflow from a stage -> plugin-name-list map.
func NewWorkflow(stageMap map[types.Stage][]string) *Workflow {
	return &Workflow{
		stageMap:   stageMap,
		predicates: make(map[types.Stage]Predicate),
	}
}

// WithPredicate attaches a gating predicate to one stage and returns the
// same Workflow for chaining.
func (w *Workflow) WithPredicate(stage types.Stage, p Predicate) *Workflow {
	w.predicates[stage] = p
	return w
}

// PluginNamesForStage returns the configured plugin order for stage, or
// (nil, false) if the workflow does not constrain that stage.
func (w *Workflow) PluginNamesForStage(stage types.Stage) ([]string, bool) {
	if w == nil {
		return nil, false
	}
	names, ok := w.stageMap[stage]
	return names, ok
}

// ShouldExecute reports whether stage should run at all, consulting the
// stage's predicate if one was attached. Absent a predicate, stages always
// execute.
func (w *Workflow) ShouldExecute(stage types.Stage, s *state.PipelineState) bool {
	if w == nil {
		return true
	}
	if p, ok := w.predicates[stage]; ok {
		return p(stage, s)
	}
	return true
}

// Visualize renders the planned stage/plugin execution order as a GraphViz
// dot diagram, given the plugin order the registry would run absent
// workflow constraints. This is a pure, side-effect-free debugging aid
// with no bearing on the pipeline's control flow.
func (w *Workflow) Visualize(registryOrder map[types.Stage][]string) string {
	var b strings.Builder
	b.WriteString("digraph pipeline {\n")
	b.WriteString("  rankdir=LR;\n")

	prevNode := ""
	for _, stage := range types.StageOrder {
		stageNode := fmt.Sprintf("stage_%s", stage.String())
		b.WriteString(fmt.Sprintf("  %s [label=%q shape=box];\n", stageNode, stage.String()))
		if prevNode != "" {
			b.WriteString(fmt.Sprintf("  %s -> %s;\n", prevNode, stageNode))
		}
		prevNode = stageNode

		names, constrained := w.PluginNamesForStage(stage)
		if !constrained {
			names = registryOrder[stage]
		}
		for i, name := range names {
			pluginNode := fmt.Sprintf("%s_plugin_%d", stageNode, i)
			b.WriteString(fmt.Sprintf("  %s [label=%q];\n", pluginNode, name))
			b.WriteString(fmt.Sprintf("  %s -> %s [style=dotted];\n", stageNode, pluginNode))
		}
	}
	b.WriteString("}\n")
	return b.String()
}
