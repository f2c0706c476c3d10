package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fractalworks/agentpipe/pkg/config"
)

func TestValidate_RejectsMissingPluginType(t *testing.T) {
	c := &config.Config{
		ToolRegistry: config.ToolRegistryConfig{ConcurrencyLimit: 1},
		Plugins: config.PluginsConfig{
			Resources: map[string]config.PluginDecl{"memory": {}},
		},
	}
	err := config.Validate(c)
	assert.Error(t, err)
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	c := &config.Config{
		ToolRegistry: config.ToolRegistryConfig{ConcurrencyLimit: 4},
		Plugins: config.PluginsConfig{
			Adapters: map[string]config.PluginDecl{"echo": {Type: "echo"}},
		},
		Workflow: config.WorkflowConfig{"OUTPUT": {"echo"}},
	}
	assert.NoError(t, config.Validate(c))
}
