// Package telemetry wraps OpenTelemetry tracing around pipeline and stage
// execution, mirroring the reference implementation's start_span context
// managers around pipeline.execute and each stage.<name>.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fractalworks/agentpipe/runtime/pipeline"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartPipelineSpan opens a span covering one full pipeline run.
func StartPipelineSpan(ctx context.Context, pipelineID, userID string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("pipeline.id", pipelineID),
		attribute.String("pipeline.user_id", userID),
	))
}

// StartStageSpan opens a span covering one plugin's run within a stage
// visit.
func StartStageSpan(ctx context.Context, stageName, pluginName string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "stage."+stageName, trace.WithAttributes(
		attribute.String("stage.name", stageName),
		attribute.String("stage.plugin", pluginName),
	))
}

// EndWithError records err on span (if non-nil) and ends it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
