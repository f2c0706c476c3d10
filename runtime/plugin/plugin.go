// Package plugin defines the Plugin interface and the stage-indexed
// registry that tracks plugin capabilities and validates the plugin
// dependency graph.
package plugin

import "github.com/fractalworks/agentpipe/runtime/types"

// Plugin is implemented by every prompt, tool, resource, or adapter plugin
// that participates in the pipeline. Execute is invoked once per
// stage-visit with a PluginContext scoped to that plugin and stage.
type Plugin interface {
	Name() string

	// Stages lists every stage this plugin is registered for at least
	// once; it must be non-empty.
	Stages() []types.Stage

	// Dependencies names other plugins or resources this plugin requires.
	// A trailing '?' marks the dependency optional.
	Dependencies() []string

	// Execute runs the plugin for one stage visit. ctx is an opaque handle
	// satisfying whatever interface the pipeline package defines as its
	// state-mutation surface; it is typed as any here to avoid an import
	// cycle between plugin and pipeline.
	Execute(ctx any) error

	ValidateConfig(config map[string]any) error
}

// DependencyValidator is optionally implemented by plugins with
// cross-cutting dependency checks beyond simple name resolution (e.g. a
// plugin that requires two resources to share a compatible schema).
type DependencyValidator interface {
	ValidateDependencies(lookup func(name string) bool) error
}

// RuntimeValidator is optionally implemented by plugins that can confirm
// correctness against a live backend, used by the hot-reload path.
type RuntimeValidator interface {
	ValidateRuntime() error
}

// Capabilities accumulates a plugin's declared stage membership and
// required resources across however many registration calls name it.
type Capabilities struct {
	SupportedStages   map[types.Stage]bool
	RequiredResources map[string]bool
}

func newCapabilities() *Capabilities {
	return &Capabilities{
		SupportedStages:   make(map[types.Stage]bool),
		RequiredResources: make(map[string]bool),
	}
}
