package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// maxRobotsBytes caps how much of a robots.txt file is read
const maxRobotsBytes = 512 * 1024

// RobotsDecision is the robots.txt verdict for one URL
type RobotsDecision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsPolicy answers robots.txt questions for one crawler identity.
// Parsed rules are kept per host for ttl.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string
	agent     string // product token matched against User-agent groups
	rules     *gocache.Cache
}

// NewRobotsPolicy creates a policy fetching robots.txt through client
func NewRobotsPolicy(client *http.Client, userAgent string, ttl time.Duration) *RobotsPolicy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		agent:     AgentToken(userAgent),
		rules:     gocache.New(ttl, 2*ttl),
	}
}

// Check reports whether rawURL may be fetched and the crawl delay of the matching group.
// A robots.txt that cannot be fetched allows everything and is retried on the next call.
func (p *RobotsPolicy) Check(ctx context.Context, rawURL string) (RobotsDecision, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return RobotsDecision{}, fmt.Errorf("parse URL: %w", err)
	}
	if target.Host == "" {
		return RobotsDecision{}, fmt.Errorf("parse URL %q: missing host", rawURL)
	}

	data, err := p.rulesFor(ctx, target)
	if err != nil {
		return RobotsDecision{Allowed: true}, nil
	}

	decision := RobotsDecision{Allowed: data.TestAgent(target.EscapedPath(), p.agent)}
	if group := data.FindGroup(p.agent); group != nil {
		decision.CrawlDelay = group.CrawlDelay
	}
	return decision, nil
}

// rulesFor returns the cached rules for the URL's host, fetching them on a miss
func (p *RobotsPolicy) rulesFor(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)
	if cached, ok := p.rules.Get(host); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	robotsURL := (&url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	// 4xx allows everything, 5xx disallows everything
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	p.rules.SetDefault(host, data)
	return data, nil
}

// AgentToken reduces a User-Agent header to the product token matched against robots.txt groups
func AgentToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return "*"
	}
	product, _, _ := strings.Cut(fields[0], "/")
	return product
}
