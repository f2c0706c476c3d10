// Package config defines the declarative configuration schema for an
// agentpipe deployment: server settings, resource/tool/adapter/prompt plugin
// declarations, tool-registry limits, and the workflow stage map.
package config

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Manifest is the K8s-style envelope every config file is wrapped in.
type Manifest struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Config            `yaml:"spec"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Reload   bool   `yaml:"reload"`
}

// PluginDecl describes one resource/tool/adapter/prompt plugin entry. Layer
// is only meaningful for resources; this package does not fill it in when
// it is omitted.
type PluginDecl struct {
	Type    string         `yaml:"type"`
	Layer   string         `yaml:"layer,omitempty"`
	Options map[string]any `yaml:",inline"`
}

// PluginsConfig groups declarations by plugin kind.
type PluginsConfig struct {
	Resources map[string]PluginDecl `yaml:"resources,omitempty"`
	Tools     map[string]PluginDecl `yaml:"tools,omitempty"`
	Adapters  map[string]PluginDecl `yaml:"adapters,omitempty"`
	Prompts   map[string]PluginDecl `yaml:"prompts,omitempty"`
}

// ToolRegistryConfig configures the Tool Registry / Dispatcher.
type ToolRegistryConfig struct {
	ConcurrencyLimit int `yaml:"concurrency_limit"`
	CacheTTLSeconds  int `yaml:"cache_ttl,omitempty"`
}

// WorkflowConfig is the stage-name -> ordered plugin-name-list map from
// spec.md's Workflow Descriptor (C9).
type WorkflowConfig map[string][]string

// Config is the Spec of a Manifest: everything needed to build a Container,
// PluginRegistry, ToolRegistry, and Workflow for one pipeline deployment.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Plugins      PluginsConfig      `yaml:"plugins"`
	ToolRegistry ToolRegistryConfig `yaml:"tool_registry"`
	Workflow     WorkflowConfig     `yaml:"workflow,omitempty"`
}
