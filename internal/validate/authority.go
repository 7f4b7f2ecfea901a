package validate

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/riskprobe/internal/model"
)

// AuthorityClassifier classifies sources into authority tiers
type AuthorityClassifier struct {
	config  *model.AuthorityConfig
	domains [4]map[string]bool
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		defaults := model.DefaultConfig().Authority
		config = &defaults
	}

	classifier := &AuthorityClassifier{config: config}
	lists := [4][]string{
		config.RegistryDomains,
		config.RegulatorDomains,
		config.NewsDomains,
		config.SocialDomains,
	}
	for tier, list := range lists {
		classifier.domains[tier] = make(map[string]bool, len(list))
		for _, domain := range list {
			classifier.domains[tier][strings.ToLower(domain)] = true
		}
	}

	return classifier
}

// Classify classifies a URL into an authority tier
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierSocial
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	// Explicit domain mappings win
	if a.config.DomainMap != nil {
		if tierStr, ok := a.config.DomainMap[host]; ok {
			return parseTierString(tierStr)
		}
	}

	// Most authoritative list first so a registry under a regulator's parent domain stays tier 0
	for tier := model.TierRegistry; tier <= model.TierSocial; tier++ {
		if matchesDomain(host, a.domains[tier]) {
			return tier
		}
	}

	// Government hosts not listed explicitly are treated as regulators
	if strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov.") {
		return model.TierRegulator
	}

	return model.TierSocial
}

// matchesDomain reports whether host equals or is a subdomain of a listed domain
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "registry":
		return model.TierRegistry
	case "regulator":
		return model.TierRegulator
	case "news":
		return model.TierNews
	case "social":
		return model.TierSocial
	}
	if n, err := strconv.Atoi(tier); err == nil {
		return clampTier(model.AuthorityTier(n))
	}
	return model.TierSocial
}

func clampTier(t model.AuthorityTier) model.AuthorityTier {
	if t < model.MinTier {
		return model.MinTier
	}
	if t > model.MaxTier {
		return model.MaxTier
	}
	return t
}
