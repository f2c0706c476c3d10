package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/logger"
)

// entry is one registration held by the Container before build_all runs.
type entry struct {
	name         string
	factory      Factory
	config       map[string]any
	dependencies []string // trailing '?' marks an optional dependency
	layer        Layer

	instance    Resource
	initialized bool
}

// Container is the four-layer dependency-injected resource lifecycle
// manager. Registration is cheap and idempotent by name; Build validates
// and instantiates everything in dependency order, Shutdown tears it all
// down in reverse.
type Container struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	buildOrder []string // initialization order, for reverse-order shutdown
	pools      map[string]*Pool
}

// NewContainer constructs an empty Container.
func NewContainer() *Container {
	return &Container{
		entries: make(map[string]*entry),
		pools:   make(map[string]*Pool),
	}
}

// Register records a resource factory under name at the given layer.
// Registering the same name twice overwrites the prior registration.
func (c *Container) Register(name string, layer Layer, factory Factory, config map[string]any, dependencies ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{
		name:         name,
		factory:      factory,
		config:       config,
		dependencies: dependencies,
		layer:        layer,
	}
}

// dependencyName strips the trailing '?' optional marker.
func dependencyName(dep string) (name string, optional bool) {
	if strings.HasSuffix(dep, "?") {
		return strings.TrimSuffix(dep, "?"), true
	}
	return dep, false
}

// validateLayers enforces that every non-optional dependency edge crosses
// exactly one layer boundary (dependent.layer - dependency.layer == 1).
func (c *Container) validateLayers() error {
	for _, e := range c.entries {
		for _, dep := range e.dependencies {
			name, optional := dependencyName(dep)
			dependency, ok := c.entries[name]
			if !ok {
				if optional {
					continue
				}
				return pipeerrors.NewResourceError(e.name, "validate_layers",
					fmt.Errorf("missing required dependency %q", name))
			}
			if int(e.layer)-int(dependency.layer) != 1 {
				return pipeerrors.NewResourceError(e.name, "validate_layers",
					fmt.Errorf("dependency %q (layer %d) does not cross exactly one boundary from layer %d",
						name, dependency.layer, e.layer))
			}
		}
	}
	return nil
}

// topoSortLayer returns names in entry within one layer, ordered so that
// every dependency appears before its dependents (Kahn's algorithm). An
// unresolved cycle is a fatal initialization error naming the layer.
func topoSortLayer(names []string, entries map[string]*entry) ([]string, error) {
	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string)
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
		inDegree[n] = 0
	}
	for _, n := range names {
		for _, dep := range entries[n].dependencies {
			depName, optional := dependencyName(dep)
			if !set[depName] {
				continue // cross-layer or optional-absent dependency, already validated
			}
			inDegree[n]++
			dependents[depName] = append(dependents[depName], n)
			_ = optional
		}
	}

	var queue []string
	for _, n := range names {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dependent := range dependents[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(names) {
		var stuck []string
		for _, n := range names {
			if inDegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle among: %s", strings.Join(stuck, ", "))
	}
	return order, nil
}

// Build validates layer rules, topologically sorts each layer, and
// instantiates every resource in layers 1→4: validate config, validate
// dependencies are registered, construct, inject dependencies, initialize,
// health-check. Any failure aborts the whole build with a structured error
// naming the offending resource.
func (c *Container) Build(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validateLayers(); err != nil {
		return err
	}

	byLayer := map[Layer][]string{}
	for name, e := range c.entries {
		byLayer[e.layer] = append(byLayer[e.layer], name)
	}

	for layer := LayerInfrastructure; layer <= LayerPlugin; layer++ {
		names := byLayer[layer]
		if len(names) == 0 {
			continue
		}
		order, err := topoSortLayer(names, c.entries)
		if err != nil {
			return pipeerrors.NewResourceError(fmt.Sprintf("layer-%d", layer), "build",
				fmt.Errorf("initialization failed: %w", err))
		}
		for _, name := range order {
			if err := c.buildOne(ctx, c.entries[name]); err != nil {
				return err
			}
			c.buildOrder = append(c.buildOrder, name)
		}
	}
	return nil
}

func (c *Container) buildOne(ctx context.Context, e *entry) error {
	if err := validateConfigOf(e); err != nil {
		return pipeerrors.NewResourceError(e.name, "validate_config", err)
	}

	instance, err := e.factory(e.config)
	if err != nil {
		return pipeerrors.NewResourceError(e.name, "construct", err)
	}
	e.instance = instance

	for _, dep := range e.dependencies {
		depName, optional := dependencyName(dep)
		di, ok := instance.(DependencyInjected)
		if !ok {
			continue
		}
		depEntry, found := c.entries[depName]
		if !found || depEntry.instance == nil {
			if optional {
				di.InjectDependency(depName, nil)
				continue
			}
			return pipeerrors.NewResourceError(e.name, "inject_dependencies",
				fmt.Errorf("required dependency %q not available", depName))
		}
		di.InjectDependency(depName, depEntry.instance)
	}

	if init, ok := instance.(Initializer); ok {
		if err := init.Initialize(ctx); err != nil {
			return pipeerrors.NewResourceError(e.name, "initialize", err)
		}
	}

	if hc, ok := instance.(HealthChecker); ok {
		if !hc.HealthCheck(ctx) {
			return pipeerrors.NewResourceError(e.name, "health_check", fmt.Errorf("resource reported unhealthy at build"))
		}
	}

	e.initialized = true
	logger.Info("resource built", "name", e.name, "layer", e.layer)
	return nil
}

func validateConfigOf(e *entry) error {
	if e.instance != nil {
		return e.instance.ValidateConfig(e.config)
	}
	// Construct a throwaway instance to run class-level config validation
	// ahead of the real build, matching the "validate before instantiate"
	// contract without requiring a separate validator registration.
	probe, err := e.factory(e.config)
	if err != nil {
		return err
	}
	return probe.ValidateConfig(e.config)
}

// Get returns the initialized instance registered under name, or nil.
func (c *Container) Get(name string) Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok || !e.initialized {
		return nil
	}
	return e.instance
}

// Shutdown tears down every initialized resource in reverse build order.
// Individual shutdown errors are logged and swallowed so later shutdowns
// still run.
func (c *Container) Shutdown(ctx context.Context) {
	c.mu.Lock()
	order := append([]string(nil), c.buildOrder...)
	c.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		e := c.entries[order[i]]
		if !e.initialized {
			continue
		}
		if s, ok := e.instance.(Shutdowner); ok {
			if err := s.Shutdown(ctx); err != nil {
				logger.Error("resource shutdown failed", "name", e.name, "error", err)
			}
		}
	}
}

// HealthReport probes every initialized resource concurrently and returns
// a name -> healthy map.
func (c *Container) HealthReport(ctx context.Context) map[string]bool {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for name, e := range c.entries {
		if e.initialized {
			names = append(names, name)
		}
	}
	c.mu.RUnlock()

	report := make(map[string]bool, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			e := c.entries[name]
			healthy := true
			if hc, ok := e.instance.(HealthChecker); ok {
				healthy = hc.HealthCheck(ctx)
			}
			mu.Lock()
			report[name] = healthy
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return report
}

// AddPool registers a pooled resource; Acquire/Release for this name
// delegate to the pool instead of returning the singleton instance.
func (c *Container) AddPool(name string, pool *Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools[name] = pool
}

// Acquire checks out a pooled resource, or returns the singleton instance
// unchanged if name is not registered as a pool (identity behavior).
func (c *Container) Acquire(ctx context.Context, name string) (any, error) {
	c.mu.RLock()
	pool, pooled := c.pools[name]
	c.mu.RUnlock()
	if pooled {
		return pool.Acquire(ctx)
	}
	return c.Get(name), nil
}

// Release returns a pooled resource to its pool; a no-op for non-pooled
// resources.
func (c *Container) Release(name string, obj any) {
	c.mu.RLock()
	pool, pooled := c.pools[name]
	c.mu.RUnlock()
	if pooled {
		pool.Release(obj)
	}
}
