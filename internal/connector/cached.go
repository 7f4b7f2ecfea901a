package connector

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ppiankov/riskprobe/internal/cache"
	"github.com/ppiankov/riskprobe/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Cached is a read-through cache in front of a connector.
// Identical concurrent queries share one upstream call.
type Cached struct {
	next    Connector
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
	stats   *Stats
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCached wraps next with c. A nil cache returns next unchanged.
func NewCached(next Connector, c cache.Cache, ttl time.Duration, opts ...Option) Connector {
	if c == nil {
		return next
	}
	o := applyOptions(opts)
	return &Cached{
		next:    next,
		cache:   c,
		ttl:     ttl,
		stats:   NewStats(next.ID()),
		metrics: o.metrics,
		logger:  o.logger,
	}
}

// ID returns the wrapped source identifier
func (c *Cached) ID() string {
	return c.next.ID()
}

// Search serves from cache when possible and stores successful responses
func (c *Cached) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	key := cache.QueryKey(c.next.ID(), query+"\x00"+opts.Region, opts.MaxResults)

	if resp, ok := c.lookup(ctx, key); ok {
		c.stats.recordCache(true)
		c.metrics.RecordCacheLookup(c.next.ID(), true)
		resp.Query = query
		return resp, nil
	}
	c.stats.recordCache(false)
	c.metrics.RecordCacheLookup(c.next.ID(), false)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		resp, err := c.next.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	// Copy so callers sharing a singleflight result never alias each other
	shared := v.(*SearchResponse)
	out := *shared
	out.Results = append([]SearchResult(nil), shared.Results...)
	return &out, nil
}

// Stats merges cache counters into the wrapped connector's statistics
func (c *Cached) Stats() StatsSnapshot {
	snap := c.stats.Snapshot()
	if r, ok := c.next.(StatsReporter); ok {
		inner := r.Stats()
		inner.CacheHits = snap.CacheHits
		inner.CacheMisses = snap.CacheMisses
		return inner
	}
	return snap
}

// Unwrap returns the wrapped connector
func (c *Cached) Unwrap() Connector {
	return c.next
}

func (c *Cached) lookup(ctx context.Context, key string) (*SearchResponse, bool) {
	data, ok := c.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "source", c.next.ID(), "error", err)
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

func (c *Cached) store(ctx context.Context, key string, resp *SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("query cache write failed", "source", c.next.ID(), "error", err)
	}
}
