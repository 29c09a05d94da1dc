package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisKeyPrefix namespaces visibility entries so that a flush never touches
// unrelated keys in a shared Redis database.
const redisKeyPrefix = "hearth:authz:vis:"

// RedisCache is a Redis-backed VisibilityCache for deployments running more
// than one replica of the engine, where an in-process cache on one replica
// cannot be evicted by a mutation handled on another.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and returns a shared visibility cache.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisVisibilityKey(userID int64, kind VisibilityKind) string {
	return redisKeyPrefix + visibilityCacheKey(userID, kind)
}

// Get returns the cached set for the user and kind, or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, userID int64, kind VisibilityKind) (SpaceSet, error) {
	data, err := c.client.Get(ctx, redisVisibilityKey(userID, kind)).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read visibility entry: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		// A corrupt entry is treated as a miss; the builder will overwrite
		// it with a fresh snapshot.
		return nil, ErrCacheMiss
	}

	return NewSpaceSet(ids...), nil
}

// Set stores the set for the user and kind with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, userID int64, kind VisibilityKind, spaces SpaceSet) error {
	data, err := json.Marshal(spaces.IDs())
	if err != nil {
		return fmt.Errorf("failed to encode visibility entry: %w", err)
	}

	if err := c.client.Set(ctx, redisVisibilityKey(userID, kind), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write visibility entry: %w", err)
	}
	return nil
}

// Invalidate removes both kinds of entry for each given user.
func (c *RedisCache) Invalidate(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(userIDs)*2)
	for _, userID := range userIDs {
		keys = append(keys,
			redisVisibilityKey(userID, VisibilitySpaces),
			redisVisibilityKey(userID, VisibilityPages),
		)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate visibility entries: %w", err)
	}
	return nil
}

// Flush removes every entry in the visibility namespace. Unlike FLUSHDB this
// leaves keys outside the prefix alone.
func (c *RedisCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 512 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to flush visibility namespace: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan visibility namespace: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to flush visibility namespace: %w", err)
		}
	}
	return nil
}
