package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache implements a bounded in-memory cache. Entries are evicted in
// LRU order once the configured capacity is reached; an optional TTL expires
// entries lazily on read.
type MemoryCache struct {
	mu     sync.Mutex
	data   *lru.Cache[string, memoryItem]
	config Config
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache with the default configuration.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates a new in-memory cache with custom configuration.
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig().Capacity
	}
	data, err := lru.New[string, memoryItem](config.Capacity)
	if err != nil {
		// lru.New only fails on a non-positive size, which is ruled out above.
		panic(err)
	}
	return &MemoryCache{
		data:   data,
		config: config,
	}
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.data.Get(fullKey)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		m.data.Remove(fullKey)
		return nil, ErrCacheMiss{Key: key}
	}

	return item.value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Add(fullKey, item)
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Remove(m.config.Prefix + key)
	return nil
}

// Clear removes all values from the cache. Clearing an already-empty cache
// is a no-op.
func (m *MemoryCache) Clear(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Purge()
	return nil
}

// Exists checks if a key exists in the cache
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	fullKey := m.config.Prefix + key

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.data.Peek(fullKey)
	if !ok {
		return false, nil
	}

	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		m.data.Remove(fullKey)
		return false, nil
	}

	return true, nil
}
