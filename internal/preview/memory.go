package preview

import (
	"context"
	"sync"
	"time"

	"github.com/docsmith/docsmith/internal/doc"
)

// MemoryCache implements Cache in process memory, for tests and for running
// without Redis. Expiry is evaluated lazily on Get.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	d       doc.Document
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Set(ctx context.Context, key string, d doc.Document, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{d: d.Clone(), expires: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) (doc.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	return e.d.Clone(), nil
}
