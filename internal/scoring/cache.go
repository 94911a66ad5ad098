package scoring

import (
	"sync"
	"sync/atomic"

	"github.com/MikeSquared-Agency/Arbiter/internal/segment"
)

type boundKey struct {
	set   bool
	value float64
}

type rangeKey struct {
	min, max boundKey
}

// cacheKey carries every input the composite score reads, so two pairs that
// share ids but differ in attributes or criteria never share an entry.
type cacheKey struct {
	subjectID string
	bucketID  string

	volume       float64
	price        float64
	margin       float64
	revenue      float64
	deliveries   int
	lastActivity int64
	hasActivity  bool

	volumeRange rangeKey
	priceRange  rangeKey
	marginRange rangeKey
}

func newBoundKey(p *float64) boundKey {
	if p == nil {
		return boundKey{}
	}
	return boundKey{set: true, value: *p}
}

func newRangeKey(r segment.Range) rangeKey {
	return rangeKey{min: newBoundKey(r.Min), max: newBoundKey(r.Max)}
}

func keyFor(s segment.Subject, b segment.Bucket) cacheKey {
	k := cacheKey{
		subjectID:   s.ID,
		bucketID:    b.ID,
		volume:      s.TotalVolume,
		price:       s.AverageUnitPrice,
		margin:      s.ProfitMargin,
		revenue:     s.TotalRevenue,
		deliveries:  s.DeliveryCount,
		volumeRange: newRangeKey(b.Criteria.Volume),
		priceRange:  newRangeKey(b.Criteria.Price),
		marginRange: newRangeKey(b.Criteria.Margin),
	}
	if !s.LastActivity.IsZero() {
		k.hasActivity = true
		k.lastActivity = s.LastActivity.UnixNano()
	}
	return k
}

// ScoreCache memoizes composite scores. Entries are keyed by the pair's ids
// together with the subject attributes and bucket criteria that feed the
// score. It is an optimization only: dropping entries never changes a
// computed score.
type ScoreCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]float64
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewScoreCache creates an empty cache.
func NewScoreCache() *ScoreCache {
	return &ScoreCache{entries: make(map[cacheKey]float64)}
}

// GetOrCompute returns the cached score for the pair, computing and storing
// it on a miss. compute runs outside the lock; when two callers race on the
// same key the first stored value wins, which is safe because compute is pure.
func (c *ScoreCache) GetOrCompute(subject segment.Subject, bucket segment.Bucket, compute func() float64) (float64, bool) {
	key := keyFor(subject, bucket)

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, true
	}

	c.misses.Add(1)
	computed := compute()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, false
	}
	c.entries[key] = computed
	return computed, false
}

// Len returns the number of cached pairs.
func (c *ScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Hits returns the number of lookups served from the cache since creation.
func (c *ScoreCache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of lookups that had to compute a score.
func (c *ScoreCache) Misses() int64 {
	return c.misses.Load()
}

// Clear drops every entry and returns how many were dropped. Hit and miss
// counters are kept.
func (c *ScoreCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[cacheKey]float64)
	return n
}
