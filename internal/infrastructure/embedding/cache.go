package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/core/ports"
)

// VectorCache is a content-addressed LRU cache of embedding vectors fronting
// the external provider. Identical normalized text always maps to the same
// entry; entries are immutable once written and die by TTL or LRU eviction.
//
// The cache is the only object shared across concurrent requests; all state
// is guarded by one mutex. A concurrent miss on the same text may issue a
// duplicate provider call; last write wins, which is wasteful but correct
// because vectors for identical text never change.
type VectorCache struct {
	provider ports.EmbeddingProvider

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used

	maxEntries  int
	ttl         time.Duration
	costPerCall float64

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	now func() time.Time
}

type cacheEntry struct {
	key       string
	vector    []float32
	createdAt time.Time
	hitCount  uint64
}

type CacheOptions struct {
	// MaxEntries bounds the cache; zero or negative disables caching
	// entirely (bypass mode: every read is a miss, every write a no-op).
	MaxEntries  int
	TTL         time.Duration
	CostPerCall float64
}

func NewVectorCache(provider ports.EmbeddingProvider, opts CacheOptions) *VectorCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &VectorCache{
		provider:    provider,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
		maxEntries:  opts.MaxEntries,
		ttl:         ttl,
		costPerCall: opts.CostPerCall,
		now:         time.Now,
	}
}

// normalizeText collapses whitespace so trivially different spellings of the
// same query share one entry.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func cacheKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text. A read of an expired entry removes
// it and reports a miss.
func (c *VectorCache) Get(text string) ([]float32, bool) {
	if c.bypassed() {
		return nil, false
	}
	key := cacheKey(normalizeText(text))

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(key)
}

// Put stores the vector for text. Re-putting existing text only refreshes
// recency; the stored vector is immutable.
func (c *VectorCache) Put(text string, vector []float32) {
	if c.bypassed() || len(vector) == 0 {
		return
	}
	key := cacheKey(normalizeText(text))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, vector)
}

// GetOrCompute resolves vectors for texts, issuing exactly one provider call
// for the distinct uncached subset. Input order is preserved on reassembly
// and new vectors are written back before returning.
func (c *VectorCache) GetOrCompute(ctx context.Context, texts []string) ([][]float32, bool, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, false, nil
	}

	keys := make([]string, len(texts))
	missingKeys := make([]string, 0, len(texts))
	missingTexts := make([]string, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))

	c.mu.Lock()
	for i, text := range texts {
		normalized := normalizeText(text)
		keys[i] = cacheKey(normalized)
		if vec, ok := c.lookupLocked(keys[i]); ok {
			vectors[i] = vec
			continue
		}
		if _, dup := seen[keys[i]]; dup {
			continue
		}
		seen[keys[i]] = struct{}{}
		missingKeys = append(missingKeys, keys[i])
		missingTexts = append(missingTexts, normalized)
	}
	c.mu.Unlock()

	if len(missingTexts) == 0 {
		return vectors, false, nil
	}

	computed, err := c.provider.Embed(ctx, missingTexts)
	if err != nil {
		partial := false
		for _, vec := range vectors {
			if vec != nil {
				partial = true
				break
			}
		}
		return vectors, partial, domain.WrapError(domain.ErrProviderUnavailable, "embed uncached batch", err)
	}
	if len(computed) != len(missingTexts) {
		return vectors, false, fmt.Errorf("embed uncached batch: provider returned %d vectors for %d texts", len(computed), len(missingTexts))
	}

	byKey := make(map[string][]float32, len(missingKeys))
	c.mu.Lock()
	for i, key := range missingKeys {
		byKey[key] = computed[i]
		if !c.bypassed() && len(computed[i]) > 0 {
			c.storeLocked(key, computed[i])
		}
	}
	c.mu.Unlock()

	for i := range texts {
		if vectors[i] == nil {
			vectors[i] = byKey[keys[i]]
		}
	}
	return vectors, false, nil
}

// Stats returns a snapshot of the running counters. Estimated savings counts
// provider calls avoided by hits at the configured per-call cost.
func (c *VectorCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := domain.CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.order.Len(),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	stats.EstimatedSavings = float64(c.hits) * c.costPerCall
	return stats
}

func (c *VectorCache) bypassed() bool {
	return c.maxEntries <= 0
}

func (c *VectorCache) lookupLocked(key string) ([]float32, bool) {
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.createdAt) >= c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return nil, false
	}

	entry.hitCount++
	c.order.MoveToFront(elem)
	c.hits++
	return entry.vector, true
}

func (c *VectorCache) storeLocked(key string, vector []float32) {
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		vector:    vector,
		createdAt: c.now(),
	})
	c.entries[key] = elem

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.evictions++
	}
}
