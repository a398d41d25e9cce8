package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps entries in process. Used for single-instance
// deployments and tests.
type MemoryBackend struct {
	items *gocache.Cache
}

func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	return &MemoryBackend{items: gocache.New(DefaultTTL, cleanupInterval)}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := b.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)
	b.items.Set(key, data, ttl)
	return nil
}

func (b *MemoryBackend) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		b.items.Delete(k)
	}
	return nil
}

func (b *MemoryBackend) Len() int {
	return b.items.ItemCount()
}
