package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
)

// Load reads and parses a manifest file from disk.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pipeerrors.NewValidationError("config.load", err)
	}
	return Parse(raw)
}

// Parse unmarshals manifest YAML and validates its structural requirements.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, pipeerrors.NewValidationError("config.parse", err)
	}
	if err := Validate(&m.Spec); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal serializes a manifest back to YAML. Parse(Marshal(m)) must produce
// an equivalent manifest — the config serialization round-trip law.
func Marshal(m *Manifest) ([]byte, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, pipeerrors.NewValidationError("config.marshal", err)
	}
	return out, nil
}

// LoadInto is a convenience for reloading a config file into an existing
// Manifest pointer; dst is left unchanged if the file fails to load.
func LoadInto(path string, dst *Manifest) error {
	m, err := Load(path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	*dst = *m
	return nil
}
