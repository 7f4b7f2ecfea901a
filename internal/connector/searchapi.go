package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/riskprobe/internal/metrics"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/worker"
)

// SearchAPI is the primary connector: a rate-limited, quota-bound JSON search API
type SearchAPI struct {
	id         string
	endpoint   string
	apiKey     string
	maxResults int
	fetcher    *fetcher
	quota      *dailyQuota
	stats      *Stats
	runner     *callRunner
	logger     *slog.Logger
}

// Option configures a connector
type Option func(*options)

type options struct {
	limiter *worker.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// WithLimiter shares a process-wide rate limiter
func WithLimiter(l *worker.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithMetrics records source call metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewSearchAPI creates the primary connector
func NewSearchAPI(cfg model.PrimarySourceConfig, httpCfg model.HTTPConfig, opts ...Option) *SearchAPI {
	o := applyOptions(opts)

	id := cfg.Name
	if id == "" {
		id = "searchapi"
	}

	if o.limiter == nil {
		o.limiter = worker.NewLimiter(cfg.RateLimitInterval, cfg.Burst)
	}

	stats := NewStats(id)
	return &SearchAPI{
		id:         id,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxResults: cfg.ResultsPerQuery,
		fetcher:    newFetcher(cfg.CallTimeout, httpCfg),
		quota:      newDailyQuota(cfg.DailyQuota),
		stats:      stats,
		logger:     o.logger,
		runner: &callRunner{
			sourceID:    id,
			policy:      retryPolicy{MaxRetries: cfg.MaxRetries},
			callTimeout: cfg.CallTimeout,
			limiter:     o.limiter,
			stats:       stats,
			metrics:     o.metrics,
			logger:      o.logger,
		},
	}
}

// ID returns the source identifier
func (s *SearchAPI) ID() string {
	return s.id
}

// Search runs one query with retries on transient failures
func (s *SearchAPI) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	return s.runner.run(ctx, query, func(ctx context.Context) (*SearchResponse, error) {
		return s.searchOnce(ctx, query, opts)
	})
}

// Stats returns connector statistics including daily quota usage
func (s *SearchAPI) Stats() StatsSnapshot {
	snap := s.stats.Snapshot()
	used, limit := s.quota.usage()
	snap.QuotaUsed = used
	snap.QuotaLimit = limit
	if limit > 0 {
		snap.QuotaRemaining = limit - used
		if snap.QuotaRemaining <= 0 {
			snap.Available = false
		}
	}
	return snap
}

// searchAPIResponse is the upstream JSON shape
type searchAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
		Date    string `json:"date"`
	} `json:"organic_results"`
}

func (s *SearchAPI) searchOnce(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	// 1. Local daily quota
	if !s.quota.take() {
		return nil, NewError(ErrorQuotaExhausted, s.id, "daily quota used up", nil)
	}

	// 2. Build request URL
	limit := opts.MaxResults
	if limit <= 0 {
		limit = s.maxResults
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("engine", "google")
	if limit > 0 {
		params.Set("num", strconv.Itoa(limit))
	}
	if opts.Region != "" {
		params.Set("location", opts.Region)
	}

	sep := "?"
	if strings.Contains(s.endpoint, "?") {
		sep = "&"
	}

	// 3. Call upstream
	res, err := s.fetcher.get(ctx, s.endpoint+sep+params.Encode(), "application/json")
	if err != nil {
		return nil, NewError(ErrorTransient, s.id, "request failed", err)
	}

	// 4. Classify status
	if err := s.classifyStatus(res); err != nil {
		return nil, err
	}

	// 5. Decode body
	var body searchAPIResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, NewError(ErrorBadData, s.id, "decode response", err)
	}
	if body.Error != "" {
		if isQuotaMessage(body.Error) {
			s.quota.exhaust()
			return nil, NewError(ErrorQuotaExhausted, s.id, body.Error, nil)
		}
		if strings.Contains(strings.ToLower(body.Error), "hasn't returned any results") {
			return &SearchResponse{Source: s.id, Query: query, Results: []SearchResult{}, FetchedAt: time.Now().UTC()}, nil
		}
		return nil, NewError(ErrorBadData, s.id, body.Error, nil)
	}

	results := make([]SearchResult, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		results = append(results, SearchResult{
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(r.Snippet),
			URL:     strings.TrimSpace(r.Link),
			Date:    r.Date,
		})
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	return &SearchResponse{
		Source:    s.id,
		Query:     query,
		Results:   results,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// classifyStatus maps HTTP statuses onto the error taxonomy
func (s *SearchAPI) classifyStatus(res *fetchResult) error {
	status := res.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusPaymentRequired:
		s.quota.exhaust()
		return statusError(ErrorQuotaExhausted, s.id, status, "payment required")
	case status == http.StatusTooManyRequests:
		if isQuotaMessage(string(res.Body)) {
			s.quota.exhaust()
			return statusError(ErrorQuotaExhausted, s.id, status, "quota exhausted")
		}
		return statusError(ErrorTransient, s.id, status, "rate limited")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return statusError(ErrorAuthentication, s.id, status, "rejected credentials")
	case status >= 500:
		return statusError(ErrorTransient, s.id, status, "upstream error")
	default:
		return statusError(ErrorBadData, s.id, status, "unexpected status")
	}
}

func statusError(category ErrorCategory, sourceID string, status int, message string) *Error {
	e := NewError(category, sourceID, fmt.Sprintf("%s (HTTP %d)", message, status), nil)
	e.StatusCode = status
	return e
}

// quotaMarkers are upstream phrases for an exhausted plan. Throttling text
// ("rate limit reached") must not match any of them.
var quotaMarkers = []string{
	"run out of searches",
	"out of searches",
	"quota",
	"plan limit",
	"monthly limit",
	"daily limit",
	"monthly searches",
}

// isQuotaMessage detects upstream wording for an exhausted plan
func isQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
