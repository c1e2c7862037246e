package trivia

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisRegistryKey = "trivia:active_players"

// RedisRegistry stores the active-player set in a Redis SET so several bot
// instances agree on who is mid-game. SADD is atomic per member, which gives
// the same insert-if-absent guarantee as the in-memory registry.
type RedisRegistry struct {
	redis  *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisRegistry creates a registry backed by the given Redis client.
func NewRedisRegistry(client *redis.Client, logger zerolog.Logger) *RedisRegistry {
	return &RedisRegistry{
		redis:  client,
		key:    redisRegistryKey,
		logger: logger,
	}
}

func (r *RedisRegistry) TryAcquire(ctx context.Context, playerID string) (bool, error) {
	added, err := r.redis.SAdd(ctx, r.key, playerID).Result()
	if err != nil {
		return false, fmt.Errorf("acquire session slot: %w", err)
	}
	return added == 1, nil
}

func (r *RedisRegistry) Release(ctx context.Context, playerID string) error {
	if err := r.redis.SRem(ctx, r.key, playerID).Err(); err != nil {
		return fmt.Errorf("release session slot: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Contains(ctx context.Context, playerID string) (bool, error) {
	member, err := r.redis.SIsMember(ctx, r.key, playerID).Result()
	if err != nil {
		return false, fmt.Errorf("check session slot: %w", err)
	}
	return member, nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context) ([]string, error) {
	ids, err := r.redis.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot active players: %w", err)
	}
	return ids, nil
}
