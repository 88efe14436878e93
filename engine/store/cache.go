package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a BaseStorage with a bounded read-through cache (SPEC_FULL
// domain stack: "hashicorp/golang-lru/v2 | bounded read cache in front of
// the resource store"). Get checks the cache first; Put/Delete write
// through and invalidate, so the cache can never serve a value staler
// than the backend's own last write.
type Cached struct {
	backend BaseStorage
	cache   *lru.Cache[ResourceKey, cacheEntry]
}

type cacheEntry struct {
	value any
	etag  string
}

// NewCached wraps backend with an LRU cache holding up to size entries.
func NewCached(backend BaseStorage, size int) (*Cached, error) {
	c, err := lru.New[ResourceKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cached{backend: backend, cache: c}, nil
}

func (c *Cached) Put(ctx context.Context, key ResourceKey, value any, expectedETag string) (string, error) {
	etag, err := c.backend.Put(ctx, key, value, expectedETag)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, cacheEntry{value: value, etag: etag})
	return etag, nil
}

func (c *Cached) Get(ctx context.Context, key ResourceKey) (any, string, error) {
	if entry, ok := c.cache.Get(key); ok {
		return entry.value, entry.etag, nil
	}
	value, etag, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	c.cache.Add(key, cacheEntry{value: value, etag: etag})
	return value, etag, nil
}

func (c *Cached) Delete(ctx context.Context, key ResourceKey) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return err
	}
	c.cache.Remove(key)
	return nil
}

func (c *Cached) List(ctx context.Context, namespace string, typ ResourceType) ([]ResourceKey, error) {
	return c.backend.List(ctx, namespace, typ)
}

func (c *Cached) Watch(ctx context.Context, namespace string, typ ResourceType) (<-chan Event, error) {
	return c.backend.Watch(ctx, namespace, typ)
}

func (c *Cached) Close() error {
	return c.backend.Close()
}
