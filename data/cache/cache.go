// Package cache is the shared byte-keyed cache tier: an in-process TTL map
// by default, promoted to Redis when REDIS_URL/REDIS_ADDR is set. It backs
// HTTP response caching, symbol resolution, LLM unavailability flags and
// the debate result/cooldown store.
package cache

import (
	"context"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, val []byte, ttl time.Duration)
}

type memEntry struct {
	val []byte
	exp time.Time // zero means no expiry
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

// New returns the in-process cache tier. Expired entries are dropped lazily
// on read; there is no background sweeper.
func New() Cache { return &memCache{entries: make(map[string]memEntry)} }

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(c.entries, key)
		return nil, false
	}
	return e.val, true
}

func (c *memCache) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.entries[key] = e
}

// redisOpTimeout bounds every shared-cache round trip so a slow Redis
// cannot stall a request path that only wanted a cache peek.
const redisOpTimeout = 500 * time.Millisecond

type redisCache struct{ client *redis.Client }

// NewAuto selects the cache backend from the environment: REDIS_URL
// (redis://... or rediss://...) first, the legacy bare-host REDIS_ADDR
// second, in-process otherwise.
func NewAuto() Cache {
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		if opts, err := redis.ParseURL(raw); err == nil {
			return &redisCache{client: redis.NewClient(opts)}
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisCache{client: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return New()
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_ = r.client.Set(ctx, key, val, ttl).Err()
}
