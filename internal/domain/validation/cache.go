package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/icdachi/validator/internal/domain/verdict"
)

// RedisKeyPrefix namespaces cached results in a shared Redis.
const RedisKeyPrefix = "validation:"

// CacheKey is the hex SHA-256 of "dx:px". Codes are not normalized.
func CacheKey(diagnosisCode, procedureCode string) string {
	sum := sha256.Sum256([]byte(diagnosisCode + ":" + procedureCode))
	return hex.EncodeToString(sum[:])
}

// Cache stores determined results by pair key. Implementations return
// copies so callers cannot mutate stored entries.
type Cache interface {
	Get(ctx context.Context, key string) (*verdict.Result, bool, error)
	Set(ctx context.Context, key string, r *verdict.Result) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
}

type memoryEntry struct {
	result  *verdict.Result
	expires time.Time
}

// MemoryCache is a process-local cache. A zero TTL never expires entries.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*verdict.Result, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.result.Clone(), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r *verdict.Result) error {
	e := memoryEntry{result: r.Clone()}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// RedisCache shares results between instances. Values are JSON encoded.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the Redis at url, e.g. redis://localhost:6379/0.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*verdict.Result, bool, error) {
	raw, err := c.client.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var r verdict.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, r *verdict.Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, RedisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, RedisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Len counts keys under the prefix with SCAN.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	n := 0
	iter := c.client.Scan(ctx, 0, RedisKeyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
