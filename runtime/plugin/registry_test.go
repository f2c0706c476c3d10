package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalworks/agentpipe/runtime/plugin"
	"github.com/fractalworks/agentpipe/runtime/types"
)

type stubPlugin struct {
	name string
	deps []string
}

func (p *stubPlugin) Name() string                          { return p.name }
func (p *stubPlugin) Stages() []types.Stage                  { return []types.Stage{types.StageThink} }
func (p *stubPlugin) Dependencies() []string                 { return p.deps }
func (p *stubPlugin) Execute(ctx any) error                  { return nil }
func (p *stubPlugin) ValidateConfig(config map[string]any) error { return nil }

func TestRegistry_PluginsForStage_InsertionOrderIsExecutionOrder(t *testing.T) {
	r := plugin.NewRegistry()
	first := &stubPlugin{name: "first"}
	second := &stubPlugin{name: "second"}

	r.RegisterPluginForStage(first, types.StageThink)
	r.RegisterPluginForStage(second, types.StageThink)

	got := r.PluginsForStage(types.StageThink)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Name())
	assert.Equal(t, "second", got[1].Name())
}

func TestRegistry_RegisterPluginForStage_IsIdempotentPerPair(t *testing.T) {
	r := plugin.NewRegistry()
	p := &stubPlugin{name: "dup"}

	r.RegisterPluginForStage(p, types.StageThink)
	r.RegisterPluginForStage(p, types.StageThink)
	r.RegisterPluginForStage(p, types.StageThink)

	assert.Len(t, r.PluginsForStage(types.StageThink), 1)
}

func TestRegistry_ValidateDependencies_RejectsSelfDependency(t *testing.T) {
	r := plugin.NewRegistry()
	r.RegisterPlugin(&stubPlugin{name: "loopy", deps: []string{"loopy"}})

	err := r.ValidateDependencies(func(name string) bool { return false })
	assert.Error(t, err)
}

func TestRegistry_ValidateDependencies_RejectsUnresolvedRequiredDependency(t *testing.T) {
	r := plugin.NewRegistry()
	r.RegisterPlugin(&stubPlugin{name: "needs-x", deps: []string{"x"}})

	err := r.ValidateDependencies(func(name string) bool { return false })
	assert.Error(t, err)
}

func TestRegistry_ValidateDependencies_AcceptsOptionalUnresolvedDependency(t *testing.T) {
	r := plugin.NewRegistry()
	r.RegisterPlugin(&stubPlugin{name: "needs-maybe-x", deps: []string{"x?"}})

	err := r.ValidateDependencies(func(name string) bool { return false })
	assert.NoError(t, err)
}

func TestRegistry_ValidateDependencies_AcceptsResourceDependency(t *testing.T) {
	r := plugin.NewRegistry()
	r.RegisterPlugin(&stubPlugin{name: "needs-memory", deps: []string{"memory"}})

	err := r.ValidateDependencies(func(name string) bool { return name == "memory" })
	assert.NoError(t, err)
}

func TestRegistry_ValidateDependencies_RejectsCycle(t *testing.T) {
	r := plugin.NewRegistry()
	r.RegisterPlugin(&stubPlugin{name: "a", deps: []string{"b"}})
	r.RegisterPlugin(&stubPlugin{name: "b", deps: []string{"a"}})

	err := r.ValidateDependencies(func(name string) bool { return false })
	assert.Error(t, err)
}

func TestRegistry_GetByNameAndHasPlugin(t *testing.T) {
	r := plugin.NewRegistry()
	p := &stubPlugin{name: "echo"}
	r.RegisterPlugin(p)

	assert.True(t, r.HasPlugin("echo"))
	assert.Equal(t, p, r.GetByName("echo"))
	assert.Nil(t, r.GetByName("missing"))
}
