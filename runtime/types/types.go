// Package types holds the wire-level data model shared across the
// pipeline, resource, plugin, and tool packages: conversation entries,
// tool calls, stage identifiers, and failure records.
package types

import "time"

// Role names who produced a ConversationEntry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationEntry is one entry in the ordered conversation log. The first
// entry of a fresh PipelineState is always the incoming user message.
type ConversationEntry struct {
	Content   any            `json:"content"`
	Role      Role           `json:"role"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Stage identifies one of the fixed pipeline stages. Ordering is fixed:
// INPUT=1 .. OUTPUT=6; ERROR is a side-stage invoked only via failure
// dispatch and has no position in STAGE_ORDER.
type Stage int

const (
	StageInput Stage = iota + 1
	StageParse
	StageThink
	StageDo
	StageReview
	StageOutput
	StageError
)

var stageNames = map[Stage]string{
	StageInput:  "INPUT",
	StageParse:  "PARSE",
	StageThink:  "THINK",
	StageDo:     "DO",
	StageReview: "REVIEW",
	StageOutput: "OUTPUT",
	StageError:  "ERROR",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseStage resolves a symbolic stage name to its Stage value.
func ParseStage(name string) (Stage, bool) {
	for s, n := range stageNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// StageOrder is the fixed traversal order of the main loop. ERROR is
// deliberately excluded — it is reached only through failure dispatch.
var StageOrder = []Stage{StageInput, StageParse, StageThink, StageDo, StageReview, StageOutput}

// ToolCall is a plugin's request to run a named tool during the current
// stage visit. It is queued on PipelineState.PendingToolCalls and consumed
// by the Stage Executor's drain; it is never persisted across iterations.
type ToolCall struct {
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	ResultKey string         `json:"result_key"`
}

// FailureInfo records a single fault in the current pipeline run. It is set
// by the Stage Executor on the first plugin or tool fault and drives
// dispatch to the ERROR stage.
type FailureInfo struct {
	Stage             Stage          `json:"stage"`
	PluginName        string         `json:"plugin_name"`
	ErrorType         string         `json:"error_type"`
	ErrorMessage      string         `json:"error_message"`
	OriginalException string         `json:"original_exception,omitempty"`
	ContextSnapshot   map[string]any `json:"context_snapshot,omitempty"`
}
