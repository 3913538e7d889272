package recordings

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aura-webinar/dispatcher/internal/models"
	"github.com/aura-webinar/dispatcher/internal/segments"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_segment_cache_hits_total",
		Help: "Merged-segment cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_segment_cache_misses_total",
		Help: "Merged-segment cache misses.",
	})
)

type cacheKey struct {
	id       uuid.UUID
	modified time.Time
}

// SegmentCache memoizes Merge per recording version. A recording that changes
// gets a new LastModified and therefore a new key; stale keys age out.
type SegmentCache struct {
	cache *lru.Cache[cacheKey, segments.Result]
}

// NewSegmentCache creates a cache holding up to size merged results.
func NewSegmentCache(size int) (*SegmentCache, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[cacheKey, segments.Result](size)
	if err != nil {
		return nil, err
	}
	return &SegmentCache{cache: c}, nil
}

// Merged returns the merged segments of rec.
func (c *SegmentCache) Merged(rec *models.Recording) (segments.Result, error) {
	key := cacheKey{id: rec.ID, modified: rec.LastModified()}
	if res, ok := c.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return res, nil
	}
	cacheMissesTotal.Inc()
	res, err := segments.Merge(rec.Segments, rec.ModifiedSegments)
	if err != nil {
		return segments.Result{}, err
	}
	c.cache.Add(key, res)
	return res, nil
}

// Len reports the number of cached results.
func (c *SegmentCache) Len() int { return c.cache.Len() }
