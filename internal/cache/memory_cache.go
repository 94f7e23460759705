package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	updatedAt time.Time
}

// MemoryCache implements Store in process memory
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemory creates a new in-memory cache
func NewMemory(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns a copy of the cached value
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || isExpired(entry.updatedAt, m.ttl) {
		return nil, nil
	}

	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

// Set stores a copy of value
func (m *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, updatedAt: time.Now()}
	m.mu.Unlock()
	return nil
}

// Init is a no-op
func (m *MemoryCache) Init(context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryCache) Close() error {
	return nil
}
