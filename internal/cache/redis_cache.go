package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisCache implements Store on top of a redis server
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client for the given server
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedis creates a new redis cache. A zero ttl stores keys without expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves cached data, expiry is handled by redis
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache data: %w", err)
	}
	return data, nil
}

// Set stores data with the configured TTL
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache data: %w", err)
	}
	logrus.Debugf("Cached data in redis: %s", key)
	return nil
}

// Init checks the server is reachable
func (r *RedisCache) Init(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close closes the redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
