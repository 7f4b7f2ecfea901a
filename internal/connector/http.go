package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/util"
)

// fetcher performs size-limited GET requests for connectors
type fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// fetchResult is a raw HTTP response body with its status
type fetchResult struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

// newFetcher creates a fetcher honoring the proxy and TLS settings
func newFetcher(timeout time.Duration, cfg model.HTTPConfig) *fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via http.insecure_tls
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}

	return &fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}
}

// get fetches rawURL. Non-2xx statuses are returned in the result, not as errors.
func (f *fetcher) get(ctx context.Context, rawURL string, accept string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &fetchResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
