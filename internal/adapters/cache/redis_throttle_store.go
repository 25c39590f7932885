package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisThrottleStore implements fixed-window request counting in Redis.
// Counters are shared across instances, so the limit holds for the whole
// deployment rather than per process.
type RedisThrottleStore struct {
	client *redis.Client
}

// NewRedisThrottleStore creates a throttle store backed by Redis counters.
func NewRedisThrottleStore(client *redis.Client) *RedisThrottleStore {
	return &RedisThrottleStore{client: client}
}

func (s *RedisThrottleStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := "identity:throttle:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		// First hit of the window sets the expiry; later hits ride it out.
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
