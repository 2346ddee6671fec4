package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hollowaylab/reverie/pkg/resilience"
)

// Cache is the key-value side of the persistence backend. Implementations
// namespace keys by agent id.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache backs the cache contract with a Redis server.
type RedisCache struct {
	client  *redis.Client
	agentID string
}

// NewRedisCache connects to Redis and verifies connectivity.
func NewRedisCache(ctx context.Context, addr, password string, db int, agentID string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client, agentID: agentID}, nil
}

func (c *RedisCache) namespaced(key string) string {
	return c.agentID + ":" + key
}

// Get fetches a value; the second return reports presence.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache key: %w", err)
	}
	return val, true, nil
}

// Set stores a value with an optional expiry (ttl <= 0 means no expiry).
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.namespaced(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.namespaced(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// DBCache backs the cache contract with the relational cache table,
// keyed by (key, agent id).
type DBCache struct {
	db      *gorm.DB
	agentID string
}

// NewDBCache builds a cache over the store's cache table.
func NewDBCache(s *Store, agentID string) *DBCache {
	return &DBCache{db: s.db, agentID: agentID}
}

// Get fetches a value, treating expired entries as absent.
func (c *DBCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry CacheEntry
	err := c.db.WithContext(ctx).
		Where("key = ? AND agent_id = ?", key, c.agentID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Set stores a value with an optional expiry.
func (c *DBCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := CacheEntry{
		Key:       key,
		AgentID:   c.agentID,
		Value:     value,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		entry.ExpiresAt = &expires
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "agent_id"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (c *DBCache) Delete(ctx context.Context, key string) error {
	err := c.db.WithContext(ctx).
		Where("key = ? AND agent_id = ?", key, c.agentID).
		Delete(&CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// MemoryCache is an in-process cache used in tests and single-node setups.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

// Get fetches a value, treating expired entries as absent.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with an optional expiry.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryCacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// ResilientCache wraps any Cache with the same guard durable database
// operations use: circuit breaker around retry.
type ResilientCache struct {
	inner   Cache
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

// NewResilientCache wraps inner with retry and circuit-breaking.
func NewResilientCache(inner Cache, breaker *resilience.Breaker, retry resilience.RetryConfig) *ResilientCache {
	return &ResilientCache{inner: inner, breaker: breaker, retry: retry}
}

// Get fetches a value through the guard.
func (c *ResilientCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := resilience.Guard(ctx, c.breaker, c.retry, func() error {
		var opErr error
		value, ok, opErr = c.inner.Get(ctx, key)
		return opErr
	})
	return value, ok, err
}

// Set stores a value through the guard.
func (c *ResilientCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return resilience.Guard(ctx, c.breaker, c.retry, func() error {
		return c.inner.Set(ctx, key, value, ttl)
	})
}

// Delete removes a key through the guard.
func (c *ResilientCache) Delete(ctx context.Context, key string) error {
	return resilience.Guard(ctx, c.breaker, c.retry, func() error {
		return c.inner.Delete(ctx, key)
	})
}
