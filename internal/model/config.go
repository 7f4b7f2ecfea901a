package model

import "time"

// Config holds all riskprobe configuration
type Config struct {
	Source      SourceConfig      `yaml:"source" mapstructure:"source"`
	Collection  CollectionConfig  `yaml:"collection" mapstructure:"collection"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Narrative   NarrativeConfig   `yaml:"narrative" mapstructure:"narrative"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Authority   AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// SourceConfig configures the evidence source connectors
type SourceConfig struct {
	Primary  PrimarySourceConfig  `yaml:"primary" mapstructure:"primary"`
	Fallback FallbackSourceConfig `yaml:"fallback" mapstructure:"fallback"`
}

// PrimarySourceConfig configures the rate-limited search API
type PrimarySourceConfig struct {
	Name              string        `yaml:"name" mapstructure:"name"`
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	RateLimitInterval time.Duration `yaml:"rate_limit_interval" mapstructure:"rate_limit_interval"` // Minimum spacing between calls
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	CallTimeout       time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	DailyQuota        int           `yaml:"daily_quota" mapstructure:"daily_quota"` // 0 disables local accounting
	ResultsPerQuery   int           `yaml:"results_per_query" mapstructure:"results_per_query"`
}

// FallbackSourceConfig configures the direct HTTP fallback connector
type FallbackSourceConfig struct {
	Disabled      bool   `yaml:"disabled" mapstructure:"disabled"`
	Endpoint      string `yaml:"endpoint" mapstructure:"endpoint"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	MaxChecks     int    `yaml:"max_checks" mapstructure:"max_checks"`
}

// CollectionConfig configures the orchestrator
type CollectionConfig struct {
	InterQueryDelay time.Duration `yaml:"inter_query_delay" mapstructure:"inter_query_delay"`
	Parallel        bool          `yaml:"parallel" mapstructure:"parallel"`
}

// CacheConfig configures the query cache
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Dir      string `yaml:"dir" mapstructure:"dir"`             // Disk layer directory, empty disables
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"` // Shared cache, takes precedence over memory and disk
}

// TTL returns the cache time-to-live
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// LLMConfig configures the reasoning service
type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama; empty disables
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKey    string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// NarrativeConfig toggles narrative synthesis
type NarrativeConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// HTTPConfig configures outbound HTTP
type HTTPConfig struct {
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy    string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool   `yaml:"insecure_tls" mapstructure:"insecure_tls"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	AuthToken string `yaml:"auth_token,omitempty" mapstructure:"auth_token"` // Empty disables bearer auth
}

// AuthorityConfig maps domains to authority tiers
type AuthorityConfig struct {
	RegistryDomains  []string          `yaml:"registry_domains" mapstructure:"registry_domains"`
	RegulatorDomains []string          `yaml:"regulator_domains" mapstructure:"regulator_domains"`
	NewsDomains      []string          `yaml:"news_domains" mapstructure:"news_domains"`
	SocialDomains    []string          `yaml:"social_domains" mapstructure:"social_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // host -> registry|regulator|news|social or 0-3
}

// ConcurrencyConfig configures batch workers
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig configures rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	JSONLogs      bool `yaml:"json_logs" mapstructure:"json_logs"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Primary: PrimarySourceConfig{
				Name:              "searchapi",
				Endpoint:          "https://serpapi.com/search.json",
				RateLimitInterval: time.Second,
				Burst:             1,
				MaxRetries:        3,
				CallTimeout:       10 * time.Second,
				DailyQuota:        0,
				ResultsPerQuery:   10,
			},
			Fallback: FallbackSourceConfig{
				Endpoint:      "https://html.duckduckgo.com/html/",
				RespectRobots: true,
				MaxChecks:     2,
			},
		},
		Collection: CollectionConfig{
			InterQueryDelay: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTLHours: 24,
		},
		LLM: LLMConfig{
			Timeout:   30 * time.Second,
			MaxTokens: 1200,
		},
		Narrative: NarrativeConfig{Enabled: true},
		HTTP: HTTPConfig{
			UserAgent:    "riskprobe/0.1 (+https://github.com/ppiankov/riskprobe)",
			MaxBodyBytes: 2 * 1024 * 1024,
		},
		Server: ServerConfig{Addr: ":8080"},
		Authority: AuthorityConfig{
			RegistryDomains: []string{
				"companieshouse.gov.uk",
				"find-and-update.company-information.service.gov.uk",
				"opencorporates.com",
				"sec.gov",
				"gleif.org",
				"handelsregister.de",
				"abr.business.gov.au",
			},
			RegulatorDomains: []string{
				"fca.org.uk",
				"finra.org",
				"cftc.gov",
				"ftc.gov",
				"esma.europa.eu",
				"bafin.de",
				"asic.gov.au",
				"mas.gov.sg",
				"consumerfinance.gov",
			},
			NewsDomains: []string{
				"reuters.com",
				"bloomberg.com",
				"ft.com",
				"wsj.com",
				"bbc.co.uk",
				"bbc.com",
				"nytimes.com",
				"theguardian.com",
				"techcrunch.com",
				"crunchbase.com",
				"dnb.com",
				"bbb.org",
			},
			SocialDomains: []string{
				"reddit.com",
				"twitter.com",
				"x.com",
				"facebook.com",
				"trustpilot.com",
				"medium.com",
				"quora.com",
			},
		},
		Concurrency: ConcurrencyConfig{Workers: 2},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// Validate checks the configuration before the pipeline starts
func (c Config) Validate() error {
	p := c.Source.Primary
	if p.Endpoint == "" {
		return &ConfigError{Key: "source.primary.endpoint", Message: "must be set"}
	}
	if p.APIKey == "" {
		return &ConfigError{Key: "source.primary.api_key", Message: "must be set (or RISKPROBE_SOURCE_PRIMARY_API_KEY)"}
	}
	if p.RateLimitInterval <= 0 {
		return &ConfigError{Key: "source.primary.rate_limit_interval", Message: "must be positive"}
	}
	if p.CallTimeout <= 0 {
		return &ConfigError{Key: "source.primary.call_timeout", Message: "must be positive"}
	}
	if p.MaxRetries < 0 {
		return &ConfigError{Key: "source.primary.max_retries", Message: "must not be negative"}
	}
	if c.Collection.InterQueryDelay < 0 {
		return &ConfigError{Key: "collection.inter_query_delay", Message: "must not be negative"}
	}
	if c.Cache.TTLHours < 0 {
		return &ConfigError{Key: "cache.ttl_hours", Message: "must not be negative"}
	}
	if !c.Source.Fallback.Disabled && c.Source.Fallback.Endpoint == "" {
		return &ConfigError{Key: "source.fallback.endpoint", Message: "must be set unless the fallback is disabled"}
	}
	switch c.LLM.Provider {
	case "", "openai", "anthropic", "ollama":
	default:
		return &ConfigError{Key: "llm.provider", Message: "unknown provider " + c.LLM.Provider}
	}
	return nil
}
