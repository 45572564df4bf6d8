package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

// FreeCacheBackend is a Backend on a fixed-size freecache.Cache. Expiry has
// one-second granularity; BackendStore applies the exact ExpiresAt on read.
type FreeCacheBackend struct {
	cache *freecache.Cache
}

// NewFreeCacheBackend wraps cache.
func NewFreeCacheBackend(cache *freecache.Cache) (*FreeCacheBackend, error) {
	if cache == nil {
		return nil, ErrNilBackend
	}
	return &FreeCacheBackend{cache: cache}, nil
}

// NewFreeCacheBackendSize allocates a freecache of size bytes.
// Recommended size: 100MB = 100 * 1024 * 1024
func NewFreeCacheBackendSize(size int) *FreeCacheBackend {
	return &FreeCacheBackend{cache: freecache.NewCache(size)}
}

// expireSeconds rounds ttl up to whole seconds. freecache treats 0 as
// "never expires", so positive ttls are at least one second.
func expireSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	secs := int((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Get returns the stored bytes for key.
func (b *FreeCacheBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := b.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("freecache get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value under key with ttl.
func (b *FreeCacheBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.cache.Set([]byte(key), value, expireSeconds(ttl)); err != nil {
		return fmt.Errorf("freecache set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (b *FreeCacheBackend) Exists(_ context.Context, key string) (bool, error) {
	_, err := b.cache.TTL([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("freecache ttl %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key.
func (b *FreeCacheBackend) Delete(_ context.Context, key string) error {
	b.cache.Del([]byte(key))
	return nil
}

var _ Backend = (*FreeCacheBackend)(nil)
