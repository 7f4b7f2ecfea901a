package llm

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Provider

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
)

// Provider defines the interface for reasoning service providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Infer sends one prompt and returns the raw completion text
	Infer(ctx context.Context, req InferRequest) (*InferResponse, error)
}

// InferRequest contains the input for one reasoning call
type InferRequest struct {
	// System sets the assistant's role
	System string

	// Prompt is the user message; it should ask for a single JSON record
	Prompt string

	// MaxTokens limits the response length (0 uses the provider config)
	MaxTokens int
}

// InferResponse contains the provider's raw output
type InferResponse struct {
	// Text is the completion; callers extract the JSON record with ExtractRecord
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts the application config to provider config
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:   llmConfig.Provider,
		Model:      llmConfig.Model,
		APIKey:     llmConfig.APIKey,
		BaseURL:    llmConfig.BaseURL,
		Timeout:    llmConfig.Timeout,
		MaxTokens:  llmConfig.MaxTokens,
		HTTPProxy:  httpConfig.HTTPProxy,
		HTTPSProxy: httpConfig.HTTPSProxy,
		NoProxy:    httpConfig.NoProxy,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func (c Config) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)"'<>\]]+`)

// ExtractURLs returns the distinct URLs cited in text
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		// Clean up trailing punctuation
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}

	return unique
}
