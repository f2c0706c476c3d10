package tool

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
)

// Registry stores tools keyed by name and answers name/intent discovery
// queries.
type Registry struct {
	mu               sync.RWMutex
	tools            map[string]Tool
	concurrencyLimit int
}

// NewRegistry constructs a registry with the given drain concurrency bound.
func NewRegistry(concurrencyLimit int) *Registry {
	return &Registry{
		tools:            make(map[string]Tool),
		concurrencyLimit: concurrencyLimit,
	}
}

// Add registers a tool, overwriting any prior registration under the same
// name.
func (r *Registry) Add(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// ConcurrencyLimit returns the configured drain concurrency bound.
func (r *Registry) ConcurrencyLimit() int {
	return r.concurrencyLimit
}

// Discover returns tools matching name and/or intent. Passing "" for
// either filter skips it.
//
// Intent filter rule: among the tools that declare the requested intent,
// if at least one declares it as its sole intent, every other matching
// tool that lists the intent FIRST but also declares additional intents is
// dropped; tools where the intent appears in a non-first position are
// always retained. This asymmetric rule is carried over unchanged from the
// reference discovery algorithm it was distilled from.
func (r *Registry) Discover(name, intent string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []Tool
	for _, t := range r.tools {
		if name != "" && t.Name() != name {
			continue
		}
		if intent != "" && !hasIntent(t, intent) {
			continue
		}
		candidates = append(candidates, t)
	}

	if intent == "" {
		return candidates
	}

	hasPrimary := false
	for _, t := range candidates {
		intents := t.Intents()
		if len(intents) == 1 && intents[0] == intent {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		return candidates
	}

	var filtered []Tool
	for _, t := range candidates {
		intents := t.Intents()
		if len(intents) > 1 && intents[0] == intent {
			continue // listed first but not exclusive — dropped in favor of the primary
		}
		filtered = append(filtered, t)
	}
	return filtered
}

func hasIntent(t Tool, intent string) bool {
	for _, i := range t.Intents() {
		if i == intent {
			return true
		}
	}
	return false
}

// ValidateParams checks params against a tool's declared schema, if any.
func ValidateParams(t Tool, params map[string]any) error {
	sv, ok := t.(SchemaValidated)
	if !ok {
		return nil
	}
	schema := sv.ParamsSchema()
	if schema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return pipeerrors.NewValidationError(fmt.Sprintf("tool.%s.params", t.Name()), err)
	}
	if !result.Valid() {
		return pipeerrors.NewValidationError(fmt.Sprintf("tool.%s.params", t.Name()), formatSchemaErrors(result))
	}
	return nil
}

func formatSchemaErrors(result *gojsonschema.Result) error {
	var msg string
	for i, e := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += e.String()
	}
	return fmt.Errorf("%s", msg)
}
