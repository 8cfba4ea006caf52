package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryBackend implements Backend in-process, the default for
// single-instance deployments and tests.
type MemoryBackend struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryBackend creates a memory backend with its expiry loop running.
func NewMemoryBackend() *MemoryBackend {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go c.Start()
	return &MemoryBackend{cache: c}
}

// Get returns the value stored under key, or ErrMiss.
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	item := b.cache.Get(key)
	if item == nil {
		return nil, ErrMiss
	}
	return item.Value(), nil
}

// Set stores value under key with the given TTL.
func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.cache.Set(key, value, ttl)
	return nil
}

// Delete removes the entry for key.
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.cache.Delete(key)
	return nil
}

// Stop shuts down the expiry loop.
func (b *MemoryBackend) Stop() {
	b.cache.Stop()
}
