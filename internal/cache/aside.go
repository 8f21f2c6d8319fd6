package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over Redis. A Cache with a nil client is a no-op
// that always misses, so callers never need to branch on Redis availability.
type Cache struct {
	rdb *redis.Client
}

// New wraps rdb, which may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON returns (true, nil) if key was found and decoded into dest.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and stores it with ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on miss (or Redis error) it calls fetch, which must fill dest,
// and stores the result best-effort.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := c.GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}
	if err := fetch(); err != nil {
		return err
	}
	_ = c.SetJSON(ctx, key, dest, ttl)
	return nil
}

// MGetJSON looks up keys in one round trip. decode is called for every hit with
// the key's index; misses and undecodable entries are reported in the returned slice.
func (c *Cache) MGetJSON(ctx context.Context, keys []string, decode func(i int, raw []byte) error) ([]int, error) {
	misses := make([]int, 0, len(keys))
	if !c.Enabled() || len(keys) == 0 {
		for i := range keys {
			misses = append(misses, i)
		}
		return misses, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		for i := range keys {
			misses = append(misses, i)
		}
		return misses, fmt.Errorf("mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			misses = append(misses, i)
			continue
		}
		if err := decode(i, []byte(s)); err != nil {
			misses = append(misses, i)
		}
	}
	return misses, nil
}

// Invalidate deletes keys, ignoring a missing client.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
