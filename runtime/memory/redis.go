package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	pipeerrors "github.com/fractalworks/agentpipe/pkg/errors"
	"github.com/fractalworks/agentpipe/runtime/types"
)

// RedisConfig configures a Redis-backed Memory resource.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Memory resource backed by a single Redis instance, grounded
// on the reference state store's use of go-redis for conversation and
// persistent-value storage.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed Memory resource from config.
func NewRedis(config map[string]any) (*Redis, error) {
	cfg := parseRedisConfig(config)
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}, nil
}

func parseRedisConfig(config map[string]any) RedisConfig {
	cfg := RedisConfig{Addr: "localhost:6379"}
	if addr, ok := config["addr"].(string); ok && addr != "" {
		cfg.Addr = addr
	}
	if pw, ok := config["password"].(string); ok {
		cfg.Password = pw
	}
	if db, ok := config["db"].(int); ok {
		cfg.DB = db
	}
	return cfg
}

// ValidateConfig requires a non-empty addr.
func (r *Redis) ValidateConfig(config map[string]any) error {
	cfg := parseRedisConfig(config)
	if cfg.Addr == "" {
		return pipeerrors.NewValidationError("memory.redis", fmt.Errorf("addr must not be empty"))
	}
	return nil
}

// Initialize pings the Redis instance to fail fast if it is unreachable.
func (r *Redis) Initialize(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return pipeerrors.NewResourceError("memory.redis", "initialize", err)
	}
	return nil
}

// Shutdown closes the underlying connection pool.
func (r *Redis) Shutdown(ctx context.Context) error {
	return r.client.Close()
}

// HealthCheck pings Redis.
func (r *Redis) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func conversationRedisKey(pipelineID, userID string) string {
	return fmt.Sprintf("agentpipe:conversation:%s:%s", userID, pipelineID)
}

func persistentRedisKey(key, userID string) string {
	return fmt.Sprintf("agentpipe:kv:%s:%s", userID, key)
}

// LoadConversation fetches and JSON-decodes the stored entry list.
func (r *Redis) LoadConversation(pipelineID, userID string) ([]types.ConversationEntry, error) {
	ctx := context.Background()
	raw, err := r.client.Get(ctx, conversationRedisKey(pipelineID, userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, pipeerrors.NewResourceError("memory.redis", "load_conversation", err)
	}
	var entries []types.ConversationEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, pipeerrors.NewResourceError("memory.redis", "load_conversation", err)
	}
	return entries, nil
}

// SaveConversation JSON-encodes and stores the entry list with no
// expiration; callers that want TTL-bounded history should configure
// Redis-side eviction policy rather than a per-key TTL here.
func (r *Redis) SaveConversation(pipelineID string, entries []types.ConversationEntry, userID string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return pipeerrors.NewResourceError("memory.redis", "save_conversation", err)
	}
	ctx := context.Background()
	if err := r.client.Set(ctx, conversationRedisKey(pipelineID, userID), raw, 0).Err(); err != nil {
		return pipeerrors.NewResourceError("memory.redis", "save_conversation", err)
	}
	return nil
}

// FetchPersistent fetches and JSON-decodes a stored value.
func (r *Redis) FetchPersistent(key string, userID string) (any, bool, error) {
	ctx := context.Background()
	raw, err := r.client.Get(ctx, persistentRedisKey(key, userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pipeerrors.NewResourceError("memory.redis", "fetch_persistent", err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, pipeerrors.NewResourceError("memory.redis", "fetch_persistent", err)
	}
	return value, true, nil
}

// StorePersistent JSON-encodes and stores value under key.
func (r *Redis) StorePersistent(key string, value any, userID string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pipeerrors.NewResourceError("memory.redis", "store_persistent", err)
	}
	ctx := context.Background()
	if err := r.client.Set(ctx, persistentRedisKey(key, userID), raw, 0).Err(); err != nil {
		return pipeerrors.NewResourceError("memory.redis", "store_persistent", err)
	}
	return nil
}

var _ Memory = (*Redis)(nil)
