package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Payments Ltd", "acme-payments-ltd"},
		{"  ../../etc/passwd ", "etc-passwd"},
		{"A/B: C*D?", "a-b-c-d"},
		{"Société Générale", "société-générale"},
		{"???", "subject"},
		{"", "subject"},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}

	long := sanitizeFilename(strings.Repeat("ab ", 80))
	if len([]rune(long)) > 100 || strings.HasSuffix(long, "-") {
		t.Errorf("Expected truncated slug without trailing dash, got %q", long)
	}
}

func TestUniqueSlug(t *testing.T) {
	used := make(map[string]int)
	got := []string{uniqueSlug("acme", used), uniqueSlug("acme", used), uniqueSlug("other", used), uniqueSlug("acme", used)}
	want := []string{"acme", "acme-2", "other", "acme-3"}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflect.TypeOf(model.Config{}), "")

	want := []string{
		"source.primary.api_key",
		"source.fallback.disabled",
		"collection.inter_query_delay",
		"cache.redis_url",
		"llm.provider",
		"server.auth_token",
		"authority.domain_map",
		"concurrency.workers",
		"output.json_logs",
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	for _, k := range want {
		if !set[k] {
			t.Errorf("Expected key %q in %v", k, keys)
		}
	}
	if set["source"] || set["source.primary"] {
		t.Error("Expected only leaf keys")
	}
}

func TestRunFlagsApply_OnlyChanged(t *testing.T) {
	var f runFlags
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(flags)

	if err := flags.Parse([]string{"--no-cache", "--parallel", "--llm-provider", "ollama"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	cfg := model.DefaultConfig()
	cfg.HTTP.UserAgent = "from-config"
	f.apply(flags, &cfg)

	if cfg.Cache.Enabled {
		t.Error("Expected cache disabled")
	}
	if !cfg.Collection.Parallel {
		t.Error("Expected parallel collection")
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Expected provider ollama, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL != "http://ollama:11434" {
		t.Errorf("Expected base URL from OLLAMA_BASE_URL, got %q", cfg.LLM.BaseURL)
	}
	if cfg.HTTP.UserAgent != "from-config" {
		t.Errorf("Expected untouched user agent, got %q", cfg.HTTP.UserAgent)
	}
	if !cfg.Output.IncludeFooter {
		t.Error("Expected footer default kept")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".riskprobe", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Expected valid YAML, got %v", err)
	}
	if cfg.Source.Primary.Endpoint != model.DefaultConfig().Source.Primary.Endpoint {
		t.Errorf("Expected default endpoint, got %q", cfg.Source.Primary.Endpoint)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("Expected error when config already exists")
	}
}

func TestMaskSecrets(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Source.Primary.APIKey = "secret"
	cfg.Server.AuthToken = "token"

	masked := maskSecrets(cfg)
	if masked.Source.Primary.APIKey == "secret" || masked.Server.AuthToken == "token" {
		t.Errorf("Expected secrets masked, got %+v", masked.Source.Primary)
	}
	if masked.LLM.APIKey != "" {
		t.Errorf("Expected empty key to stay empty, got %q", masked.LLM.APIKey)
	}
	if cfg.Source.Primary.APIKey != "secret" {
		t.Error("Expected original config untouched")
	}
}
