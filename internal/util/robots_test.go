package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsPolicy_Check(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("Expected only robots.txt requests, got %s", r.URL.Path)
		}
		fetches.Add(1)
		_, _ = fmt.Fprint(w, "User-agent: riskprobe\nDisallow: /private/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n")
	}))
	defer server.Close()

	policy := NewRobotsPolicy(server.Client(), "riskprobe/0.1 (+https://github.com/ppiankov/riskprobe)", time.Hour)

	tests := []struct {
		path    string
		allowed bool
	}{
		{"/html/?q=acme", true},
		{"/private/page", false},
	}

	for _, tt := range tests {
		decision, err := policy.Check(context.Background(), server.URL+tt.path)
		if err != nil {
			t.Fatalf("Check(%s): %v", tt.path, err)
		}
		if decision.Allowed != tt.allowed {
			t.Errorf("Check(%s): expected allowed=%v, got %v", tt.path, tt.allowed, decision.Allowed)
		}
		if decision.CrawlDelay != 2*time.Second {
			t.Errorf("Expected crawl delay 2s, got %v", decision.CrawlDelay)
		}
	}

	if fetches.Load() != 1 {
		t.Errorf("Expected robots.txt fetched once, got %d", fetches.Load())
	}
}

func TestRobotsPolicy_StatusRules(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		allowed bool
	}{
		{"missing file allows", http.StatusNotFound, true},
		{"server error disallows", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			policy := NewRobotsPolicy(server.Client(), "riskprobe", time.Hour)
			decision, err := policy.Check(context.Background(), server.URL+"/html/")
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if decision.Allowed != tt.allowed {
				t.Errorf("Expected allowed=%v for status %d, got %v", tt.allowed, tt.status, decision.Allowed)
			}
		})
	}
}

func TestRobotsPolicy_UnreachableAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	policy := NewRobotsPolicy(&http.Client{Timeout: time.Second}, "riskprobe", time.Hour)
	decision, err := policy.Check(context.Background(), url+"/html/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !decision.Allowed {
		t.Error("Expected unreachable robots.txt to allow fetching")
	}
}

func TestRobotsPolicy_InvalidURL(t *testing.T) {
	policy := NewRobotsPolicy(nil, "riskprobe", 0)
	if _, err := policy.Check(context.Background(), "not a url"); err == nil {
		t.Error("Expected error for URL without host")
	}
}

func TestAgentToken(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"riskprobe/0.1 (+https://github.com/ppiankov/riskprobe)", "riskprobe"},
		{"Mozilla/5.0 (X11)", "Mozilla"},
		{"plainbot", "plainbot"},
		{"", "*"},
	}

	for _, tt := range tests {
		if got := AgentToken(tt.ua); got != tt.want {
			t.Errorf("AgentToken(%q): expected %q, got %q", tt.ua, tt.want, got)
		}
	}
}
