package pipeline

import (
	"context"
	"time"

	"github.com/fractalworks/agentpipe/runtime/logger"
	"github.com/fractalworks/agentpipe/runtime/metrics"
	"github.com/fractalworks/agentpipe/runtime/state"
	"github.com/fractalworks/agentpipe/runtime/telemetry"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// StateLogger is invoked after every stage visit with the current state
// and the stage just run, independent of any Memory resource — useful for
// audit trails that don't require a full memory backend.
type StateLogger func(s *state.PipelineState, stage types.Stage)

// Loop is the Pipeline Loop (C7): it iterates STAGE_ORDER, honoring
// next-stage/skip-stage hints, enforces the max-iteration cap, writes a
// checkpoint after every stage when configured, and produces the run's
// terminal response.
type Loop struct {
	Executor      *Executor
	Workflow      *Workflow
	MaxIterations int
	StateLogger   StateLogger
}

// NewLoop constructs a Pipeline Loop. maxIterations must be >= 1.
func NewLoop(executor *Executor, workflow *Workflow, maxIterations int) *Loop {
	return &Loop{Executor: executor, Workflow: workflow, MaxIterations: maxIterations}
}

// Run drives one message through the pipeline to a terminal response. If
// checkpointKey names a memory key holding a serialized PipelineState, the
// run resumes from it instead of constructing a fresh state.
func (l *Loop) Run(ctx context.Context, userID, message, checkpointKey string) any {
	started := time.Now()
	s := l.buildOrResume(userID, message, checkpointKey)

	spanCtx, span := telemetry.StartPipelineSpan(ctx, s.PipelineID, userID)
	defer span.End()

	response := l.run(spanCtx, s, checkpointKey)

	metrics.PipelineDuration.Observe(time.Since(started).Seconds())
	metrics.PipelineIterations.Observe(float64(s.Iteration))
	if s.FailureInfo != nil {
		metrics.PipelineFailures.WithLabelValues(s.FailureInfo.ErrorType).Inc()
	}
	return response
}

func (l *Loop) buildOrResume(userID, message, checkpointKey string) *state.PipelineState {
	if checkpointKey != "" {
		if mem := l.Executor.memory(); mem != nil {
			if raw, ok, err := mem.FetchPersistent(checkpointKey, userID); err == nil && ok {
				if data, ok := raw.(string); ok {
					if resumed, err := state.UnmarshalCheckpoint([]byte(data)); err == nil {
						logger.Info("resumed pipeline from checkpoint", "pipeline_id", resumed.PipelineID, "checkpoint_key", checkpointKey)
						return resumed
					}
				}
			}
		}
	}
	return state.New(userID, message, time.Now())
}

func (l *Loop) writeCheckpoint(s *state.PipelineState, checkpointKey string) {
	if checkpointKey == "" {
		return
	}
	mem := l.Executor.memory()
	if mem == nil {
		return
	}
	data, err := s.MarshalCheckpoint()
	if err != nil {
		logger.Error("checkpoint marshal failed", "pipeline_id", s.PipelineID, "error", err)
		return
	}
	if err := mem.StorePersistent(checkpointKey, string(data), s.UserID); err != nil {
		logger.Error("checkpoint write failed", "pipeline_id", s.PipelineID, "error", err)
	}
}

func (l *Loop) run(ctx context.Context, s *state.PipelineState, checkpointKey string) any {
	for {
		s.Iteration++

		start := s.NextStage
		if start == 0 {
			start = types.StageInput
		}
		s.NextStage = 0

		startIdx := indexOfStage(start)
		for _, stage := range types.StageOrder[startIdx:] {
			if s.ConsumeSkip(stage) {
				continue
			}
			if !l.Workflow.ShouldExecute(stage, s) {
				continue
			}
			if s.LastCompletedStage != 0 && stage <= s.LastCompletedStage {
				continue
			}

			l.Executor.RunStage(ctx, s, stage, l.Workflow)
			if l.StateLogger != nil {
				l.StateLogger(s, stage)
			}
			l.writeCheckpoint(s, checkpointKey)

			if s.NextStage != 0 {
				s.LastCompletedStage = stage
				break
			}
			if s.FailureInfo != nil || s.HasResponse() {
				break
			}
			s.LastCompletedStage = stage
		}

		if s.HasResponse() {
			break
		}

		if s.NextStage != 0 {
			s.LastCompletedStage = 0
			continue
		}

		if s.FailureInfo != nil || s.Iteration >= l.MaxIterations {
			if s.FailureInfo == nil && s.Iteration >= l.MaxIterations {
				s.FailureInfo = &types.FailureInfo{
					Stage:        s.CurrentStage,
					ErrorType:    "max_iterations",
					ErrorMessage: "pipeline reached max_iterations without producing a response",
				}
			}
			break
		}
	}

	response := l.terminal(ctx, s)
	s.ResetForNewRun()
	return response
}

func (l *Loop) terminal(ctx context.Context, s *state.PipelineState) any {
	if s.FailureInfo != nil {
		if s.LastCompletedStage != types.StageError {
			l.Executor.RunStage(ctx, s, types.StageError, l.Workflow)
		}
		l.Executor.RunStage(ctx, s, types.StageOutput, l.Workflow)
		if !s.HasResponse() {
			return DefaultErrorResponse(s.PipelineID, s.FailureInfo)
		}
		return s.Response
	}
	if !s.HasResponse() {
		return map[string]any{"message": "no response generated", "pipeline_id": s.PipelineID}
	}
	return s.Response
}

func indexOfStage(stage types.Stage) int {
	for i, st := range types.StageOrder {
		if st == stage {
			return i
		}
	}
	return 0
}
