// Package state defines PipelineState, the authoritative per-run state the
// Pipeline Loop and Stage Executor thread through a single message's
// processing, and its JSON-compatible checkpoint representation.
package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fractalworks/agentpipe/runtime/types"
)

// PipelineState is the per-run state owned exclusively by one pipeline
// execution. It is never shared across pipelines; plugins reach it only
// through a PluginContext.
type PipelineState struct {
	mu sync.Mutex

	Conversation      []types.ConversationEntry
	PendingToolCalls  []types.ToolCall
	StageResults      map[string]any
	TemporaryThoughts map[string]any
	Response          any

	PipelineID string
	UserID     string
	RequestID  string

	Iteration          int
	CurrentStage       types.Stage
	LastCompletedStage types.Stage
	NextStage          types.Stage
	SkipStages         map[types.Stage]bool

	FailureInfo *types.FailureInfo
}

// New constructs a fresh PipelineState for a user message. pipeline_id is
// derived from the user id, the current instant, and a random suffix so
// concurrent pipelines started in the same clock tick never collide.
func New(userID, message string, now time.Time) *PipelineState {
	return &PipelineState{
		Conversation: []types.ConversationEntry{{
			Content:   message,
			Role:      types.RoleUser,
			Timestamp: now,
		}},
		StageResults:      make(map[string]any),
		TemporaryThoughts: make(map[string]any),
		PipelineID:        GeneratePipelineID(userID, now),
		UserID:            userID,
		RequestID:         uuid.NewString(),
		SkipStages:        make(map[types.Stage]bool),
	}
}

// GeneratePipelineID derives a unique per-run id from the user id, a
// timestamp, and a random suffix, used for checkpoint keys and as the
// default error_id in structured failure responses.
func GeneratePipelineID(userID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", userID, now.UTC().Format("20060102T150405.000000"), uuid.NewString()[:8])
}

// AddConversationEntry appends one entry to the conversation log. Safe for
// concurrent use by the Stage Executor and the tool drain.
func (s *PipelineState) AddConversationEntry(entry types.ConversationEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conversation = append(s.Conversation, entry)
}

// ConversationSnapshot returns a read-only copy of the conversation log.
func (s *PipelineState) ConversationSnapshot() []types.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ConversationEntry, len(s.Conversation))
	copy(out, s.Conversation)
	return out
}

// SetResponse assigns the final response. Plugins must not call this more
// than once per run except through controlled ERROR recovery; neither this
// setter nor the Stage Executor checks that, and a later call overwrites
// an earlier one.
func (s *PipelineState) SetResponse(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Response = v
}

// HasResponse reports whether a response has been set.
func (s *PipelineState) HasResponse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Response != nil
}

// Think writes a temporary-thought value shared across iterations of one
// message; it is cleared once the response is finalized.
func (s *PipelineState) Think(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TemporaryThoughts[key] = value
}

// GetThink reads a temporary-thought value.
func (s *PipelineState) GetThink(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.TemporaryThoughts[key]
	return v, ok
}

// JumpToStage sets the next-stage hint, consumed once by the Pipeline Loop.
func (s *PipelineState) JumpToStage(stage types.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextStage = stage
}

// SkipStage marks a stage to be skipped on its next occurrence in
// STAGE_ORDER. Calling it more than once for the same stage before it is
// reached is idempotent.
func (s *PipelineState) SkipStage(stage types.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SkipStages[stage] = true
}

// ConsumeSkip reports and clears whether stage was marked to be skipped.
func (s *PipelineState) ConsumeSkip(stage types.Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SkipStages[stage] {
		delete(s.SkipStages, stage)
		return true
	}
	return false
}

// ResetForNewRun clears the per-run scratch space kept after a response is
// finalized: stage_results and temporary_thoughts. Conversation and
// pipeline identity survive.
func (s *PipelineState) ResetForNewRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StageResults = make(map[string]any)
	s.TemporaryThoughts = make(map[string]any)
}

// checkpoint is the JSON-compatible serialized shape of a PipelineState.
// Timestamps are RFC3339 strings and Stage values are their int ordinal,
// per the checkpoint format's "timestamps as ISO strings, enums as their
// stage numeric value" rule.
type checkpoint struct {
	Conversation       []entryJSON        `json:"conversation"`
	StageResults       map[string]any     `json:"stage_results"`
	TemporaryThoughts  map[string]any     `json:"temporary_thoughts"`
	Response           any                `json:"response"`
	PipelineID         string             `json:"pipeline_id"`
	UserID             string             `json:"user_id"`
	RequestID          string             `json:"request_id"`
	Iteration          int                `json:"iteration"`
	CurrentStage       int                `json:"current_stage"`
	LastCompletedStage int                `json:"last_completed_stage"`
	NextStage          int                `json:"next_stage"`
	SkipStages         []int              `json:"skip_stages"`
	FailureInfo        *types.FailureInfo `json:"failure_info,omitempty"`
}

type entryJSON struct {
	Content   any            `json:"content"`
	Role      types.Role     `json:"role"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MarshalCheckpoint serializes the state into its JSON checkpoint form.
func (s *PipelineState) MarshalCheckpoint() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]entryJSON, len(s.Conversation))
	for i, e := range s.Conversation {
		entries[i] = entryJSON{
			Content:   e.Content,
			Role:      e.Role,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			Metadata:  e.Metadata,
		}
	}

	skip := make([]int, 0, len(s.SkipStages))
	for st := range s.SkipStages {
		skip = append(skip, int(st))
	}

	cp := checkpoint{
		Conversation:       entries,
		StageResults:       s.StageResults,
		TemporaryThoughts:  s.TemporaryThoughts,
		Response:           s.Response,
		PipelineID:         s.PipelineID,
		UserID:             s.UserID,
		RequestID:          s.RequestID,
		Iteration:          s.Iteration,
		CurrentStage:       int(s.CurrentStage),
		LastCompletedStage: int(s.LastCompletedStage),
		NextStage:          int(s.NextStage),
		SkipStages:         skip,
		FailureInfo:        s.FailureInfo,
	}
	return json.Marshal(cp)
}

// UnmarshalCheckpoint reconstructs a PipelineState from its JSON checkpoint
// form, as written by MarshalCheckpoint.
func UnmarshalCheckpoint(data []byte) (*PipelineState, error) {
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	entries := make([]types.ConversationEntry, len(cp.Conversation))
	for i, e := range cp.Conversation {
		ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("unmarshal checkpoint entry %d timestamp: %w", i, err)
		}
		entries[i] = types.ConversationEntry{
			Content:   e.Content,
			Role:      e.Role,
			Timestamp: ts,
			Metadata:  e.Metadata,
		}
	}

	skip := make(map[types.Stage]bool, len(cp.SkipStages))
	for _, st := range cp.SkipStages {
		skip[types.Stage(st)] = true
	}

	if cp.StageResults == nil {
		cp.StageResults = make(map[string]any)
	}
	if cp.TemporaryThoughts == nil {
		cp.TemporaryThoughts = make(map[string]any)
	}

	return &PipelineState{
		Conversation:       entries,
		StageResults:       cp.StageResults,
		TemporaryThoughts:  cp.TemporaryThoughts,
		Response:           cp.Response,
		PipelineID:         cp.PipelineID,
		UserID:             cp.UserID,
		RequestID:          cp.RequestID,
		Iteration:          cp.Iteration,
		CurrentStage:       types.Stage(cp.CurrentStage),
		LastCompletedStage: types.Stage(cp.LastCompletedStage),
		NextStage:          types.Stage(cp.NextStage),
		SkipStages:         skip,
		FailureInfo:        cp.FailureInfo,
	}, nil
}
