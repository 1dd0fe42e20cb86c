package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"artscope/internal/domain"
	"artscope/internal/port"
)

// EmbeddingCache is an LRU cache with TTL for image embeddings.
type EmbeddingCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	embedding domain.Embedding
	timestamp time.Time
}

func NewEmbeddingCache(maxSize int, ttl time.Duration) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EmbeddingCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Key identifies an image under a given model.
func Key(model string, image []byte) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write(image)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *EmbeddingCache) Get(key string) (domain.Embedding, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses++
		return nil, false
	}

	c.moveToEnd(key)
	c.hits++
	return clone(entry.embedding), true
}

func (c *EmbeddingCache) Put(key string, emb domain.Embedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{
		embedding: clone(emb),
		timestamp: time.Now(),
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *EmbeddingCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *EmbeddingCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *EmbeddingCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *EmbeddingCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *EmbeddingCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func clone(emb domain.Embedding) domain.Embedding {
	out := make(domain.Embedding, len(emb))
	copy(out, emb)
	return out
}

// CachedExtractor serves repeated images from an EmbeddingCache.
type CachedExtractor struct {
	extractor port.Extractor
	cache     *EmbeddingCache
}

func NewCachedExtractor(extractor port.Extractor, cache *EmbeddingCache) *CachedExtractor {
	return &CachedExtractor{
		extractor: extractor,
		cache:     cache,
	}
}

func (e *CachedExtractor) Extract(ctx context.Context, image []byte) (domain.Embedding, error) {
	key := Key(e.extractor.ModelName(), image)
	if emb, hit := e.cache.Get(key); hit {
		return emb, nil
	}

	emb, err := e.extractor.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	e.cache.Put(key, emb)
	return emb, nil
}

func (e *CachedExtractor) Dimension() int {
	return e.extractor.Dimension()
}

func (e *CachedExtractor) ModelName() string {
	return e.extractor.ModelName()
}

// Cache exposes the underlying cache.
func (e *CachedExtractor) Cache() *EmbeddingCache {
	return e.cache
}

var _ port.Extractor = (*CachedExtractor)(nil)
