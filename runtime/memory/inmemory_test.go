package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalworks/agentpipe/runtime/memory"
	"github.com/fractalworks/agentpipe/runtime/types"
)

func TestInMemory_ConversationRoundTrip(t *testing.T) {
	m := memory.NewInMemory()
	entries := []types.ConversationEntry{{Content: "hi", Role: types.RoleUser}}

	require.NoError(t, m.SaveConversation("p1", entries, "alice"))
	got, err := m.LoadConversation("p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestInMemory_ConversationIsScopedByUser(t *testing.T) {
	m := memory.NewInMemory()
	require.NoError(t, m.SaveConversation("p1", []types.ConversationEntry{{Content: "a"}}, "alice"))

	got, err := m.LoadConversation("p1", "bob")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInMemory_PersistentRoundTrip(t *testing.T) {
	m := memory.NewInMemory()
	require.NoError(t, m.StorePersistent("checkpoint", "data", "alice"))

	v, ok, err := m.FetchPersistent("checkpoint", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "data", v)
}

func TestInMemory_FetchMissingKeyReportsNotFound(t *testing.T) {
	m := memory.NewInMemory()
	_, ok, err := m.FetchPersistent("missing", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}
