package config

import (
	"fmt"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
)

// Validate checks the structural requirements of a parsed Config: every
// declared plugin must name a type, the tool registry must have a positive
// concurrency limit, and every workflow entry must reference a plugin name
// declared somewhere in Plugins.
func Validate(c *Config) error {
	if c.ToolRegistry.ConcurrencyLimit <= 0 {
		return pipeerrors.NewValidationError("config.tool_registry",
			fmt.Errorf("concurrency_limit must be positive, got %d", c.ToolRegistry.ConcurrencyLimit))
	}

	for group, decls := range map[string]map[string]PluginDecl{
		"resources": c.Plugins.Resources,
		"tools":     c.Plugins.Tools,
		"adapters":  c.Plugins.Adapters,
		"prompts":   c.Plugins.Prompts,
	} {
		for name, decl := range decls {
			if decl.Type == "" {
				return pipeerrors.NewValidationError("config.plugins",
					fmt.Errorf("%s.%s: missing type", group, name))
			}
		}
	}

	if c.Workflow != nil {
		known := make(map[string]bool)
		for _, decls := range []map[string]PluginDecl{c.Plugins.Resources, c.Plugins.Tools, c.Plugins.Adapters, c.Plugins.Prompts} {
			for name := range decls {
				known[name] = true
			}
		}
		for stage, names := range c.Workflow {
			for _, name := range names {
				if !known[name] {
					return pipeerrors.NewValidationError("config.workflow",
						fmt.Errorf("stage %q references undeclared plugin %q", stage, name))
				}
			}
		}
	}

	return nil
}

// PluginConfigValidator is implemented by plugins that accept runtime
// configuration changes. ValidateConfig is called before a hot-reload is
// applied; ValidateRuntime is called after, behind the reload circuit
// breaker, to confirm the new config actually works end to end.
type PluginConfigValidator interface {
	ValidateConfig(options map[string]any) error
}

// RuntimeValidator is optionally implemented in addition to
// PluginConfigValidator by plugins whose correctness can only be confirmed
// by exercising them (e.g. a probe call against a backing service).
type RuntimeValidator interface {
	ValidateRuntime() error
}
