// Package resource implements the four-layer dependency-injected resource
// container: infrastructure (1), resource-interface (2), domain (3), and
// plugin-facing (4) resources, built in topological order within each
// layer and torn down in reverse.
package resource

import "context"

// Layer is the container's four-tier dependency ceiling. A resource may
// only depend on resources in the layer directly below it; dependency
// edges must cross exactly one layer boundary.
type Layer int

const (
	LayerInfrastructure Layer = iota + 1
	LayerInterface
	LayerDomain
	LayerPlugin
)

// Resource is the minimal interface the Container requires of anything it
// manages. All methods are optional in spirit — Initialize, Shutdown, and
// HealthCheck default to no-ops/true when a concrete resource doesn't need
// them, modeled here via the optional sub-interfaces below rather than
// empty method bodies on every implementation.
type Resource interface {
	// ValidateConfig checks this resource's configuration before it is
	// built. Required.
	ValidateConfig(config map[string]any) error
}

// Initializer is implemented by resources with async setup to run after
// construction and dependency injection.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner is implemented by resources with teardown logic.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// HealthChecker is implemented by resources that can report their own
// health; absent this interface a resource is assumed healthy.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// DependencyInjected is implemented by resources that accept other
// resources by name after construction, mirroring the container's
// name-based wiring (a typed-index arena rather than back-pointers).
type DependencyInjected interface {
	InjectDependency(name string, dep any)
}

// Factory constructs a new resource instance from its declared config. The
// Container holds factories, not instances, until build time.
type Factory func(config map[string]any) (Resource, error)
