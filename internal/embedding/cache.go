package embedding

import (
	"container/list"
	"context"
	"sync"
)

// lruCache is an LRU cache for embeddings keyed by text.
type lruCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *lruCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

func (c *lruCache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CachedEmbedder wraps an Embedder with an LRU cache for text embeddings.
// Repeated query texts skip the service round trip. Image embeddings are not
// cached: indexing embeds each image once and query images are transient.
type CachedEmbedder struct {
	Embedder
	cache *lruCache
}

// NewCachedEmbedder wraps inner with a text-embedding cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = 4096
	}
	return &CachedEmbedder{Embedder: inner, cache: newLRUCache(capacity)}
}

// EmbedText returns a cached embedding when available, otherwise calls the
// wrapped embedder and caches its result.
func (e *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := e.cache.get(text); ok {
		return emb, nil
	}
	emb, err := e.Embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.set(text, emb)
	return emb, nil
}

// CacheLen returns the number of cached text embeddings.
func (e *CachedEmbedder) CacheLen() int {
	return e.cache.len()
}
