package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "plants-doctor:"

// maxRelativeExp is memcached's limit for relative expirations (30 days).
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedStore implements Store using memcached.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use the client defaults when zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedStore {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedStore) key(k string) string {
	return keyPrefix + k
}

func (c *MemcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item.Value, true, nil
}

func (c *MemcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      value,
		Expiration: expiration(ttl),
	})
}

func (c *MemcachedStore) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := c.client.Delete(c.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Ping checks if memcached is reachable. Used for startup checks.
func (c *MemcachedStore) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedStore) Close() error {
	return c.client.Close()
}

// expiration converts ttl to whole seconds. Sub-second TTLs round up to one
// second; TTLs past the relative limit are capped.
func expiration(ttl time.Duration) int32 {
	sec := int64((ttl + time.Second - 1) / time.Second)
	if sec <= 0 {
		sec = 1
	}
	if sec > maxRelativeExp {
		sec = maxRelativeExp
	}
	return int32(sec)
}
