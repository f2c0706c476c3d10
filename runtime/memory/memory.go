// Package memory implements the Memory resource: conversation log
// persistence and a generic persistent key/value store used for
// temporary-thought carryover and checkpoint storage.
package memory

import "github.com/fractalworks/agentpipe/runtime/types"

// Memory is the interface the Stage Executor and Pipeline Loop require of
// any memory resource, beyond the base resource.Resource contract.
type Memory interface {
	LoadConversation(pipelineID, userID string) ([]types.ConversationEntry, error)
	SaveConversation(pipelineID string, entries []types.ConversationEntry, userID string) error

	FetchPersistent(key string, userID string) (any, bool, error)
	StorePersistent(key string, value any, userID string) error
}
