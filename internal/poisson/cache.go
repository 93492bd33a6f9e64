package poisson

import (
	"strconv"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/totals-edge/internal/metrics"
)

// CachedGrid memoises over probabilities per (lambdaA, lambdaB) pair.
// The baseline model evaluates the same pair for every match, so most lookups hit.
type CachedGrid struct {
	grid      Grid
	cache     *cache.Cache
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewCachedGrid creates a cached grid whose entries live for ttl
func NewCachedGrid(grid Grid, ttl time.Duration) *CachedGrid {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedGrid{
		grid:  grid,
		cache: cache.New(ttl, ttl*2),
	}
}

// Grid returns the underlying grid parameters
func (cg *CachedGrid) Grid() Grid {
	return cg.grid
}

// OverProbability returns the cached value, computing and storing it on a miss
func (cg *CachedGrid) OverProbability(lambdaA, lambdaB float64) float64 {
	key := cacheKey(lambdaA, lambdaB)
	if v, found := cg.cache.Get(key); found {
		if p, ok := v.(float64); ok {
			cg.hitCount.Add(1)
			metrics.RecordGridCacheLookup(true)
			return p
		}
	}

	cg.missCount.Add(1)
	metrics.RecordGridCacheLookup(false)
	p := cg.grid.OverProbability(lambdaA, lambdaB)
	cg.cache.SetDefault(key, p)
	return p
}

// Stats returns cache statistics
func (cg *CachedGrid) Stats() (hits, misses uint64, ratio float64) {
	hits = cg.hitCount.Load()
	misses = cg.missCount.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// Clear flushes the cache and resets counters
func (cg *CachedGrid) Clear() {
	cg.cache.Flush()
	cg.hitCount.Store(0)
	cg.missCount.Store(0)
}

// ItemCount returns the number of cached pairs
func (cg *CachedGrid) ItemCount() int {
	return cg.cache.ItemCount()
}

func cacheKey(lambdaA, lambdaB float64) string {
	return strconv.FormatFloat(lambdaA, 'g', -1, 64) + "|" + strconv.FormatFloat(lambdaB, 'g', -1, 64)
}
