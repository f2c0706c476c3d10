package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// registration holds a plugin's declared dependencies alongside its
// instance, independent of which stages it has been appended to.
type registration struct {
	plugin       Plugin
	dependencies []string
	capabilities *Capabilities
}

// Registry indexes plugins by stage (insertion order is execution order)
// and by name, and validates the plugin dependency graph.
type Registry struct {
	mu          sync.RWMutex
	byName      map[string]*registration
	stagePlugins map[types.Stage][]Plugin
	stageSeen   map[types.Stage]map[string]bool // dedups (plugin, stage) pairs
}

// NewRegistry constructs an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:       make(map[string]*registration),
		stagePlugins: make(map[types.Stage][]Plugin),
		stageSeen:    make(map[types.Stage]map[string]bool),
	}
}

// RegisterPlugin records a plugin's identity and declared dependencies.
// Calling it again for the same name overwrites the prior record but
// leaves existing stage memberships intact.
func (r *Registry) RegisterPlugin(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[p.Name()] = &registration{
		plugin:       p,
		dependencies: p.Dependencies(),
		capabilities: newCapabilities(),
	}
}

// RegisterPluginForStage appends p to stage's ordered plugin list. A
// repeated (p, stage) pair is a no-op: insertion order is execution order,
// and a plugin must not execute twice in the same stage visit.
func (r *Registry) RegisterPluginForStage(p Plugin, stage types.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[p.Name()]; !ok {
		r.byName[p.Name()] = &registration{plugin: p, dependencies: p.Dependencies(), capabilities: newCapabilities()}
	}

	if r.stageSeen[stage] == nil {
		r.stageSeen[stage] = make(map[string]bool)
	}
	if r.stageSeen[stage][p.Name()] {
		return
	}
	r.stageSeen[stage][p.Name()] = true
	r.stagePlugins[stage] = append(r.stagePlugins[stage], p)
	r.byName[p.Name()].capabilities.SupportedStages[stage] = true
}

// DeclareCapabilities appends to a plugin's accumulated capability record.
func (r *Registry) DeclareCapabilities(name string, stages []types.Stage, requiredResources []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byName[name]
	if !ok {
		return
	}
	for _, s := range stages {
		reg.capabilities.SupportedStages[s] = true
	}
	for _, res := range requiredResources {
		reg.capabilities.RequiredResources[res] = true
	}
}

// PluginsForStage returns stage's plugin list in insertion (= execution)
// order.
func (r *Registry) PluginsForStage(stage types.Stage) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.stagePlugins[stage]))
	copy(out, r.stagePlugins[stage])
	return out
}

// GetByName returns the registered plugin, or nil.
func (r *Registry) GetByName(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.byName[name]; ok {
		return reg.plugin
	}
	return nil
}

// HasPlugin reports whether name is registered.
func (r *Registry) HasPlugin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

func dependencyName(dep string) (name string, optional bool) {
	if strings.HasSuffix(dep, "?") {
		return strings.TrimSuffix(dep, "?"), true
	}
	return dep, false
}

// ValidateDependencies enforces that every non-optional dependency
// resolves (against either this registry or resourceExists), that no
// plugin depends on itself, and that the derived plugin dependency graph
// is acyclic.
func (r *Registry) ValidateDependencies(resourceExists func(name string) bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, reg := range r.byName {
		for _, dep := range reg.dependencies {
			depName, optional := dependencyName(dep)
			if depName == name {
				return pipeerrors.NewPipelineError("validate_dependencies",
					fmt.Errorf("plugin %q declares a dependency on itself", name))
			}
			_, isPlugin := r.byName[depName]
			isResource := resourceExists != nil && resourceExists(depName)
			if !isPlugin && !isResource {
				if optional {
					continue
				}
				return pipeerrors.NewPipelineError("validate_dependencies",
					fmt.Errorf("plugin %q has unresolved required dependency %q", name, depName))
			}
		}
		if dv, ok := reg.plugin.(DependencyValidator); ok {
			lookup := func(n string) bool {
				_, ok := r.byName[n]
				return ok || (resourceExists != nil && resourceExists(n))
			}
			if err := dv.ValidateDependencies(lookup); err != nil {
				return pipeerrors.NewPipelineError("validate_dependencies",
					fmt.Errorf("plugin %q: %w", name, err))
			}
		}
	}

	return r.checkAcyclic()
}

// checkAcyclic runs Kahn's algorithm over the plugin-to-plugin dependency
// edges (resource dependencies are leaves and never participate in a
// cycle) and reports the offending plugins on failure.
func (r *Registry) checkAcyclic() error {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	for name := range r.byName {
		inDegree[name] = 0
	}
	for name, reg := range r.byName {
		for _, dep := range reg.dependencies {
			depName, _ := dependencyName(dep)
			if _, isPlugin := r.byName[depName]; !isPlugin {
				continue
			}
			inDegree[name]++
			dependents[depName] = append(dependents[depName], name)
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		sort.Strings(queue)
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, dependent := range dependents[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if visited != len(r.byName) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return pipeerrors.NewPipelineError("validate_dependencies",
			fmt.Errorf("plugin dependency cycle among: %s", strings.Join(stuck, ", ")))
	}
	return nil
}
