package connector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/riskprobe/internal/cache"
)

// countingConnector returns a fixed response and counts calls
type countingConnector struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (c *countingConnector) ID() string { return "fake" }

func (c *countingConnector) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &SearchResponse{
		Source:  "fake",
		Query:   query,
		Results: []SearchResult{{Title: "Acme", URL: "https://example.com"}},
	}, nil
}

func TestCached_ReadThrough(t *testing.T) {
	inner := &countingConnector{}
	c := NewCached(inner, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)
	ctx := context.Background()

	first, err := c.Search(ctx, "Acme  Ltd", SearchOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Cached {
		t.Error("Expected first response to come from upstream")
	}

	second, err := c.Search(ctx, "acme ltd", SearchOptions{MaxResults: 5})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !second.Cached {
		t.Error("Expected normalized query to hit the cache")
	}
	if second.Query != "acme ltd" {
		t.Errorf("Expected caller's query echoed back, got %q", second.Query)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", inner.calls.Load())
	}

	stats := c.(*Cached).Stats()
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("Unexpected cache stats %+v", stats)
	}
}

func TestCached_ErrorsNotCached(t *testing.T) {
	inner := &countingConnector{err: NewError(ErrorQuotaExhausted, "fake", "quota", nil)}
	c := NewCached(inner, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Search(ctx, "acme", SearchOptions{})
		if !errors.Is(err, ErrQuotaExhausted) {
			t.Fatalf("Expected quota error to propagate, got %v", err)
		}
	}
	if inner.calls.Load() != 2 {
		t.Errorf("Expected errors to bypass the cache, got %d calls", inner.calls.Load())
	}
}

func TestCached_CoalescesConcurrentQueries(t *testing.T) {
	inner := &countingConnector{delay: 50 * time.Millisecond}
	c := NewCached(inner, cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Search(context.Background(), "acme", SearchOptions{}); err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if inner.calls.Load() > 2 {
		t.Errorf("Expected concurrent identical queries to share upstream calls, got %d", inner.calls.Load())
	}
}

func TestNewCached_NilCache(t *testing.T) {
	inner := &countingConnector{}
	if NewCached(inner, nil, time.Hour) != Connector(inner) {
		t.Error("Expected nil cache to return the connector unchanged")
	}
}
