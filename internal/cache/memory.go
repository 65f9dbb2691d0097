package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"
)

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend keeps entries in a process-local freecache segment map
type MemoryBackend struct {
	cache *freecache.Cache
}

// NewMemoryBackend allocates a cache of sizeMegabytes
func NewMemoryBackend(sizeMegabytes int) *MemoryBackend {
	megabyte := 1024 * 1024
	return &MemoryBackend{
		cache: freecache.NewCache(sizeMegabytes * megabyte),
	}
}

// NewMemoryBackendWithTimer is NewMemoryBackend with a custom expiry clock
func NewMemoryBackendWithTimer(sizeMegabytes int, timer freecache.Timer) *MemoryBackend {
	megabyte := 1024 * 1024
	return &MemoryBackend{
		cache: freecache.NewCacheCustomTimer(sizeMegabytes*megabyte, timer),
	}
}

func (m *MemoryBackend) Name() string {
	return "memory"
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	value, err := m.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return value, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return m.cache.Set([]byte(key), value, expireSeconds(ttl))
}

func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	p := []byte(prefix)

	var keys [][]byte
	it := m.cache.NewIterator()
	for entry := it.Next(); entry != nil; entry = it.Next() {
		if bytes.HasPrefix(entry.Key, p) {
			keys = append(keys, entry.Key)
		}
	}

	removed := 0
	for _, k := range keys {
		if m.cache.Del(k) {
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.cache.Clear()
	return nil
}

// expireSeconds converts ttl to freecache's whole seconds, rounding up so a
// sub-second TTL does not mean "never expire"
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
