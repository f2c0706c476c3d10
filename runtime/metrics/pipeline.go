// Package metrics holds the Prometheus collectors the pipeline loop and
// tool dispatcher publish to: pipeline duration, iteration
// counts, and tool-drain concurrency, mirroring the reference
// implementation's metrics_collector.record_custom_metric calls.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PipelineDuration records wall-clock time for one execute_pipeline
	// call, from first INPUT visit to terminal return.
	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentpipe",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Duration of one pipeline run from INPUT to terminal return.",
		Buckets:   prometheus.DefBuckets,
	})

	// PipelineIterations records how many stage-cycle passes a run took.
	PipelineIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentpipe",
		Subsystem: "pipeline",
		Name:      "iterations",
		Help:      "Number of stage-cycle iterations a pipeline run consumed.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
	})

	// PipelineFailures counts terminal runs by error_type, including
	// "max_iterations" and the taxonomy names from pkg/errors.
	PipelineFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentpipe",
		Subsystem: "pipeline",
		Name:      "failures_total",
		Help:      "Terminal pipeline runs by error_type.",
	}, []string{"error_type"})

	// ToolDrainConcurrency tracks the number of tool calls executing
	// simultaneously across all draining pipelines. The Tool Registry's
	// concurrency_limit bounds each drain separately; concurrent drains
	// from different pipelines are not bounded together, so this gauge can
	// exceed the limit.
	ToolDrainConcurrency = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "agentpipe",
		Subsystem: "tool",
		Name:      "drain_concurrency",
		Help:      "Tool calls currently executing across all draining pipelines.",
	})
)

// Collectors returns every collector in this package, for registration
// against a prometheus.Registerer at process startup.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		PipelineDuration,
		PipelineIterations,
		PipelineFailures,
		ToolDrainConcurrency,
	}
}
