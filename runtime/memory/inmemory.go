package memory

import (
	"sync"

	"github.com/fractalworks/agentpipe/runtime/types"
)

// InMemory is a process-local Memory resource, suitable for the echo
// example and for tests; it holds no state across process restarts.
type InMemory struct {
	mu            sync.RWMutex
	conversations map[string][]types.ConversationEntry
	persistent    map[string]any
}

// NewInMemory constructs an empty in-process Memory resource.
func NewInMemory() *InMemory {
	return &InMemory{
		conversations: make(map[string][]types.ConversationEntry),
		persistent:    make(map[string]any),
	}
}

// ValidateConfig accepts any configuration; InMemory has no options.
func (m *InMemory) ValidateConfig(config map[string]any) error { return nil }

func conversationKey(pipelineID, userID string) string { return userID + "/" + pipelineID }

func persistentKey(key, userID string) string { return userID + "/" + key }

// LoadConversation returns the stored entries for pipelineID, or an empty
// slice if none have been saved yet.
func (m *InMemory) LoadConversation(pipelineID, userID string) ([]types.ConversationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.conversations[conversationKey(pipelineID, userID)]
	out := make([]types.ConversationEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// SaveConversation overwrites the stored entries for pipelineID.
func (m *InMemory) SaveConversation(pipelineID string, entries []types.ConversationEntry, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]types.ConversationEntry, len(entries))
	copy(stored, entries)
	m.conversations[conversationKey(pipelineID, userID)] = stored
	return nil
}

// FetchPersistent reads a previously stored value.
func (m *InMemory) FetchPersistent(key string, userID string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.persistent[persistentKey(key, userID)]
	return v, ok, nil
}

// StorePersistent writes a value under key, scoped to userID.
func (m *InMemory) StorePersistent(key string, value any, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistent[persistentKey(key, userID)] = value
	return nil
}

var _ Memory = (*InMemory)(nil)
