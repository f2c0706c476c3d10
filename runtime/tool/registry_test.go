package tool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fractalworks/agentpipe/runtime/tool"
)

type stubTool struct {
	name    string
	intents []string
}

func (t *stubTool) Name() string                             { return t.name }
func (t *stubTool) Execute(params map[string]any) (any, error) { return "ok", nil }
func (t *stubTool) Intents() []string                         { return t.intents }

func TestRegistry_Discover_ByNameOnly(t *testing.T) {
	r := tool.NewRegistry(4)
	r.Add(&stubTool{name: "calc"})
	r.Add(&stubTool{name: "search"})

	got := r.Discover("calc", "")
	assert.Len(t, got, 1)
	assert.Equal(t, "calc", got[0].Name())
}

func TestRegistry_Discover_DropsNonExclusiveFirstPositionWhenPrimaryExists(t *testing.T) {
	r := tool.NewRegistry(4)
	primary := &stubTool{name: "primary", intents: []string{"lookup"}}
	secondaryFirst := &stubTool{name: "secondary-first", intents: []string{"lookup", "other"}}
	nonFirst := &stubTool{name: "non-first", intents: []string{"other", "lookup"}}
	r.Add(primary)
	r.Add(secondaryFirst)
	r.Add(nonFirst)

	got := r.Discover("", "lookup")

	names := map[string]bool{}
	for _, t := range got {
		names[t.Name()] = true
	}
	assert.True(t, names["primary"])
	assert.False(t, names["secondary-first"], "dropped: lists intent first but isn't exclusive")
	assert.True(t, names["non-first"], "retained: intent isn't in first position")
}

func TestRegistry_Discover_NoPrimaryKeepsEverything(t *testing.T) {
	r := tool.NewRegistry(4)
	a := &stubTool{name: "a", intents: []string{"lookup", "other"}}
	b := &stubTool{name: "b", intents: []string{"other", "lookup"}}
	r.Add(a)
	r.Add(b)

	got := r.Discover("", "lookup")
	assert.Len(t, got, 2)
}

func TestRegistry_GetReturnsNilForMissing(t *testing.T) {
	r := tool.NewRegistry(4)
	assert.Nil(t, r.Get("missing"))
}
