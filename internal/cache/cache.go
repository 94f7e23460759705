// Stores the payload fetched by the relay
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/iTrooz/ask-relay/internal/config"
)

// DataKey is the key the fetched payload is stored under
const DataKey = "data"

// Store interface for caching operations
type Store interface {
	// retrieves cached data if it exists and is not expired.
	// returns nil, nil when not found or expired
	Get(ctx context.Context, key string) ([]byte, error)
	// stores data under the key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error
	// initializes the cache (e.g., creates necessary directories, checks connectivity)
	Init(ctx context.Context) error
	// releases resources held by the backend
	Close() error
}

// Key returns the payload key within the given namespace
func Key(namespace string) string {
	if namespace == "" {
		return DataKey
	}
	return namespace + "/" + DataKey
}

// New creates the cache backend selected in the configuration.
// The returned store still needs Init to be called.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL: %w", err)
	}

	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return NewMemory(ttl), nil
	case config.BackendDisk:
		return NewDisk(cfg.Cache.Folder, ttl), nil
	case config.BackendRedis:
		client := NewRedisClient(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		return NewRedis(client, ttl), nil
	case config.BackendS3:
		client, err := NewS3Client(ctx, cfg.Cache.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return NewS3(cfg.Cache.S3.Bucket, client, ttl), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

// isExpired reports whether an entry written at updatedAt outlived ttl. A zero ttl never expires.
func isExpired(updatedAt time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(updatedAt) > ttl
}
