package connector

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/riskprobe/internal/extract"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/util"
	"github.com/ppiankov/riskprobe/internal/worker"
)

// DirectID is the source identifier of the fallback connector
const DirectID = "direct"

// Direct is the fallback connector: it fetches an HTML search page over plain HTTP and parses the hits
type Direct struct {
	endpoint string
	robots   *util.RobotsPolicy
	fetcher  *fetcher
	stats    *Stats
	runner   *callRunner
	logger   *slog.Logger

	crawlOnce sync.Once
}

// NewDirect creates the fallback connector
func NewDirect(cfg model.FallbackSourceConfig, httpCfg model.HTTPConfig, callTimeout time.Duration, opts ...Option) *Direct {
	o := applyOptions(opts)

	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	f := newFetcher(callTimeout, httpCfg)
	var robots *util.RobotsPolicy
	if cfg.RespectRobots {
		robots = util.NewRobotsPolicy(f.httpClient, httpCfg.UserAgent, time.Hour)
	}

	if o.limiter == nil {
		o.limiter = worker.NewLimiter(time.Second, 1)
	}

	stats := NewStats(DirectID)
	return &Direct{
		endpoint: cfg.Endpoint,
		robots:   robots,
		fetcher:  f,
		stats:    stats,
		logger:   o.logger,
		runner: &callRunner{
			sourceID:    DirectID,
			policy:      retryPolicy{MaxRetries: 1},
			callTimeout: callTimeout,
			limiter:     o.limiter,
			stats:       stats,
			metrics:     o.metrics,
			logger:      o.logger,
		},
	}
}

// ID returns the source identifier
func (d *Direct) ID() string {
	return DirectID
}

// Stats returns connector statistics
func (d *Direct) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}

// Search fetches and parses the results page for query
func (d *Direct) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	return d.runner.run(ctx, query, func(ctx context.Context) (*SearchResponse, error) {
		return d.searchOnce(ctx, query, opts)
	})
}

func (d *Direct) searchOnce(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	pageURL := d.pageURL(query)

	// 1. Respect robots.txt
	if d.robots != nil {
		decision, err := d.robots.Check(ctx, pageURL)
		if err != nil {
			return nil, NewError(ErrorBadData, DirectID, "invalid page URL", err)
		}
		if !decision.Allowed {
			return nil, NewError(ErrorBlocked, DirectID, "disallowed by robots.txt", nil)
		}
		d.applyCrawlDelay(decision.CrawlDelay)
	}

	// 2. Fetch the page
	res, err := d.fetcher.get(ctx, pageURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, NewError(ErrorTransient, DirectID, "request failed", err)
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return nil, statusError(ErrorTransient, DirectID, res.StatusCode, "upstream unavailable")
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return nil, statusError(ErrorBadData, DirectID, res.StatusCode, "unexpected status")
	}

	// 3. Parse hits
	hits, err := extract.ParseResultsPage(string(res.Body), res.FinalURL, opts.MaxResults)
	if err != nil {
		return nil, NewError(ErrorBadData, DirectID, "parse results page", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{Title: h.Title, Snippet: h.Snippet, URL: h.URL})
	}

	return &SearchResponse{
		Source:    DirectID,
		Query:     query,
		Results:   results,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// applyCrawlDelay slows later calls to the robots.txt crawl delay, once
func (d *Direct) applyCrawlDelay(delay time.Duration) {
	if delay <= 0 || d.runner.limiter == nil {
		return
	}
	d.crawlOnce.Do(func() {
		d.logger.Info("honoring robots.txt crawl delay", "source", DirectID, "delay", delay)
		d.runner.limiter.SetSourceRate(DirectID, delay, 1)
	})
}

// pageURL appends the query to the configured endpoint
func (d *Direct) pageURL(query string) string {
	sep := "?"
	if strings.Contains(d.endpoint, "?") {
		sep = "&"
	}
	return d.endpoint + sep + url.Values{"q": {query}}.Encode()
}
