package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tripdesk-service/pkg/logger"
)

const lockPrefix = "tripdesk:lock:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds per-key locks in Redis so several service instances serialize together
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	logger     logger.Logger
}

// NewRedisLocker creates a new Redis-backed locker
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger logger.Logger) *RedisLocker {
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
		logger:     logger,
	}
}

// Acquire retries SET NX until the key is free or ctx ends
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := lockPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	release := func() {
		// Release on a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release lock", "key", key, "error", err)
		}
	}
	return release, nil
}
