package validate

import (
	"testing"

	"github.com/ppiankov/riskprobe/internal/model"
)

func TestAuthorityClassifier_DefaultTiers(t *testing.T) {
	classifier := NewAuthorityClassifier(nil) // Use defaults

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{
			url:      "https://find-and-update.company-information.service.gov.uk/company/01234567",
			expected: model.TierRegistry,
			desc:     "Companies House register",
		},
		{
			url:      "https://www.opencorporates.com/companies/gb/01234567",
			expected: model.TierRegistry,
			desc:     "Registry with www prefix",
		},
		{
			url:      "https://register.fca.org.uk/s/firm?id=123",
			expected: model.TierRegulator,
			desc:     "Regulator subdomain",
		},
		{
			url:      "https://www.reuters.com/business/acme",
			expected: model.TierNews,
			desc:     "News outlet",
		},
		{
			url:      "https://old.reddit.com/r/scams/acme",
			expected: model.TierSocial,
			desc:     "Forum",
		},
		{
			url:      "https://acme-ltd.example.com/about",
			expected: model.TierSocial,
			desc:     "Unknown site",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_GovernmentHeuristic(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	tests := []struct {
		url      string
		expected model.AuthorityTier
	}{
		{"https://www.justice.gov/opa/pr/acme", model.TierRegulator},
		{"https://www.fairtrading.gov.au/alerts", model.TierRegulator},
		{"https://sec.gov/cgi-bin/browse-edgar", model.TierRegistry},
	}

	for _, tt := range tests {
		if got := classifier.Classify(tt.url); got != tt.expected {
			t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, got)
		}
	}
}

func TestAuthorityClassifier_DomainMap(t *testing.T) {
	config := &model.AuthorityConfig{
		NewsDomains: []string{"example-news.com"},
		DomainMap: map[string]string{
			"example-news.com": "regulator",
			"registry.test":    "0",
			"odd.test":         "9",
			"unknown.test":     "bogus",
		},
	}

	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://example-news.com/story", model.TierRegulator, "Domain map overrides lists"},
		{"https://registry.test/entity", model.TierRegistry, "Numeric tier"},
		{"https://odd.test/", model.TierSocial, "Numeric tier clamped"},
		{"https://unknown.test/", model.TierSocial, "Unknown tier name"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_InvalidURL(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	for _, u := range []string{"", "not a url", "://missing-scheme"} {
		if got := classifier.Classify(u); got != model.TierSocial {
			t.Errorf("Expected social tier for %q, got %v", u, got)
		}
	}
}
