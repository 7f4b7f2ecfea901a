package connector

//go:generate mockgen -source=connector.go -destination=mocks/mocks.go -package=mocks Connector

import (
	"context"
	"time"
)

// Connector is one external information source
type Connector interface {
	// ID returns the stable source identifier used for rate limiting, caching and stats
	ID() string
	// Search runs one query against the source
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

// SearchOptions tunes one search call
type SearchOptions struct {
	MaxResults int
	Region     string
}

// SearchResult is one hit returned by a source
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Date    string `json:"date,omitempty"`
}

// Text returns the title and snippet joined for keyword matching
func (r SearchResult) Text() string {
	if r.Snippet == "" {
		return r.Title
	}
	return r.Title + ". " + r.Snippet
}

// SearchResponse is the result of one search call
type SearchResponse struct {
	Source    string         `json:"source"`
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`
	Cached    bool           `json:"cached"`
	FetchedAt time.Time      `json:"fetched_at"`
}
