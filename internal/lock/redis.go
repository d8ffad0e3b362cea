package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chart-qa-backend/internal/shared/telemetry"
)

const (
	keyPrefix      = "chartqa:lock:"
	defaultTTL     = 15 * time.Minute
	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the key only while this holder still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a cross-process keyed lock built on SET NX with a TTL.
// The TTL bounds how long a crashed holder can block a document.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed Locker.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// NewRedisFromURL parses a redis:// URL and verifies connectivity.
func NewRedisFromURL(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

// TryLock implements Locker. Every acquisition gets its own owner token.
func (r *Redis) TryLock(ctx context.Context, key string) (Release, bool, error) {
	redisKey := keyPrefix + key
	owner := uuid.NewString()
	acquired, err := r.client.SetNX(ctx, redisKey, owner, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_, err := releaseScript.Run(ctx, r.client, []string{redisKey}, owner).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				telemetry.Warn("lock_release_failed", map[string]any{
					"key":   key,
					"error": err.Error(),
				})
			}
		})
	}, true, nil
}

// Ping checks the Redis backend.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Locker = (*Redis)(nil)
