package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/plugin"
)

// ConfigurablePlugin is implemented by any plugin that can accept a new
// configuration at runtime and roll back to a previously applied one.
type ConfigurablePlugin interface {
	PluginConfigValidator
	UpdateConfiguration(options map[string]any) error
	RollbackConfig(previous *semver.Version) error
}

// versionedConfig pairs an applied configuration with the semver tag it was
// stamped with, so RollbackConfig can name an exact prior version rather
// than an opaque index.
type versionedConfig struct {
	version *semver.Version
	options map[string]any
}

// CircuitBreaker gates ValidateRuntime calls during hot-reload: after
// FailureThreshold consecutive failures it stays open for RecoveryTimeout
// before allowing another attempt.
type CircuitBreaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration

	mu          sync.Mutex
	failures    int
	openedAt    time.Time
	open        bool
}

// Allow reports whether a call may proceed, resetting the breaker if the
// recovery timeout has elapsed since it tripped.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if time.Since(b.openedAt) >= b.RecoveryTimeout {
		b.open = false
		b.failures = 0
		return true
	}
	return false
}

// RecordSuccess clears the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// RecordFailure increments the failure count, tripping the breaker once
// FailureThreshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.FailureThreshold {
		b.open = true
		b.openedAt = time.Now()
	}
}

// ReloadManager applies hot-reloads to a set of named ConfigurablePlugins,
// keeping a version history per plugin and rolling back on an update,
// runtime-validation, or circuit-breaker failure.
type ReloadManager struct {
	breaker        *CircuitBreaker
	registry       *plugin.Registry
	resourceExists func(name string) bool

	mu      sync.Mutex
	history map[string][]versionedConfig
}

// NewReloadManager constructs a manager with the given breaker settings.
// registry is the plugin registry a reload's dependency graph is
// re-validated against; resourceExists reports whether a named resource is
// available, for dependencies that resolve against the resource container
// rather than another plugin. resourceExists may be nil.
func NewReloadManager(failureThreshold int, recoveryTimeout time.Duration, registry *plugin.Registry, resourceExists func(name string) bool) *ReloadManager {
	return &ReloadManager{
		breaker:        &CircuitBreaker{FailureThreshold: failureThreshold, RecoveryTimeout: recoveryTimeout},
		registry:       registry,
		resourceExists: resourceExists,
		history:        make(map[string][]versionedConfig),
	}
}

// Apply validates and applies a new configuration to a named plugin. A
// config or dependency validation failure rejects the reload before
// anything is applied. A failure in UpdateConfiguration, in runtime
// validation, or an open breaker rolls the plugin back to the version
// last applied through this manager and returns an error. When no version
// has been applied yet there is nothing to roll back to, and RollbackConfig
// is not called.
func (m *ReloadManager) Apply(name string, p ConfigurablePlugin, newVersion *semver.Version, options map[string]any, validateRuntime bool) error {
	if err := p.ValidateConfig(options); err != nil {
		return pipeerrors.NewValidationError(fmt.Sprintf("reload.%s", name), err)
	}

	if m.registry != nil {
		if err := m.registry.ValidateDependencies(m.resourceExists); err != nil {
			return pipeerrors.NewValidationError(fmt.Sprintf("reload.%s.validate_dependencies", name), err)
		}
	}

	m.mu.Lock()
	prev := m.lastLocked(name)
	m.mu.Unlock()

	if err := p.UpdateConfiguration(options); err != nil {
		m.rollback(name, p, prev)
		return pipeerrors.New("config", fmt.Sprintf("reload.%s.apply", name), err)
	}

	if validateRuntime {
		if rv, ok := p.(RuntimeValidator); ok {
			if !m.breaker.Allow() {
				m.rollback(name, p, prev)
				return pipeerrors.NewCircuitBreakerTripped(fmt.Sprintf("reload.%s", name),
					fmt.Errorf("breaker open, rolled back to %v", versionOrNil(prev)))
			}
			if err := rv.ValidateRuntime(); err != nil {
				m.breaker.RecordFailure()
				m.rollback(name, p, prev)
				return pipeerrors.New("config", fmt.Sprintf("reload.%s.validate_runtime", name), err)
			}
			m.breaker.RecordSuccess()
		}
	}

	m.mu.Lock()
	m.history[name] = append(m.history[name], versionedConfig{version: newVersion, options: options})
	m.mu.Unlock()
	return nil
}

func (m *ReloadManager) lastLocked(name string) *versionedConfig {
	h := m.history[name]
	if len(h) == 0 {
		return nil
	}
	last := h[len(h)-1]
	return &last
}

func (m *ReloadManager) rollback(name string, p ConfigurablePlugin, prev *versionedConfig) {
	if prev == nil {
		return
	}
	_ = p.RollbackConfig(prev.version)
}

func versionOrNil(v *versionedConfig) string {
	if v == nil {
		return "<none>"
	}
	return v.version.String()
}
