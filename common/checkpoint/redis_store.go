package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisIndexKey = "agentflow:checkpoints"

// RedisStore persists checkpoint envelopes in Redis, one key per workflow
// id plus a set index for List.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func redisKey(id string) string {
	return fmt.Sprintf("agentflow:checkpoint:%s", id)
}

// Save writes the envelope and registers the id in the index.
func (s *RedisStore) Save(ctx context.Context, id string, cp *Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, redisKey(id), raw, 0)
	pipe.SAdd(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store checkpoint %s: %w", id, err)
	}
	return nil
}

// Load reads an envelope back.
func (s *RedisStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	raw, err := s.redis.Get(ctx, redisKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", id, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the envelope and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, redisKey(id))
	pipe.SRem(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}
	return nil
}

// List returns workflow ids with stored checkpoints.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return ids, nil
}

var _ Store = (*RedisStore)(nil)
