package model

import "time"

// EvidenceAtom is the normalized record for one piece of evidence
type EvidenceAtom struct {
	Tier         AuthorityTier `json:"tier"`                // 0 most authoritative, 3 least
	Source       string        `json:"source"`              // Connector or site that produced it
	Field        string        `json:"field"`               // What the atom speaks to (web_result, search_coverage, ...)
	Value        string        `json:"value"`               // Title and snippet text
	URL          string        `json:"url,omitempty"`       // Origin URL
	Timestamp    time.Time     `json:"timestamp"`           // When it was observed
	Verification Verification  `json:"verification"`        // exact, verified, partial, unverified
	Confidence   float64       `json:"confidence"`          // [0,1]
	Query        string        `json:"query,omitempty"`     // Query that surfaced it
	Category     string        `json:"category,omitempty"`  // legitimacy, fraud, regulatory, identity, contextual
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierRegistry  AuthorityTier = 0 // Official company registries, government records
	TierRegulator AuthorityTier = 1 // Sector regulators, financial authorities
	TierNews      AuthorityTier = 2 // News outlets, secondary registries
	TierSocial    AuthorityTier = 3 // Social media, forums, unknown sites

	MinTier = TierRegistry
	MaxTier = TierSocial
)

func (t AuthorityTier) String() string {
	switch t {
	case TierRegistry:
		return "registry"
	case TierRegulator:
		return "regulator"
	case TierNews:
		return "news"
	case TierSocial:
		return "social"
	default:
		return "invalid"
	}
}

// Verification describes how strongly the atom is tied to the subject
type Verification string

const (
	VerificationExact      Verification = "exact"
	VerificationVerified   Verification = "verified"
	VerificationPartial    Verification = "partial"
	VerificationUnverified Verification = "unverified"
)

// Valid reports whether v is a known verification level
func (v Verification) Valid() bool {
	switch v {
	case VerificationExact, VerificationVerified, VerificationPartial, VerificationUnverified:
		return true
	}
	return false
}

// DefaultConfidence is used when a producer does not supply one
const DefaultConfidence = 0.7

// Fields produced by the normalizer
const (
	FieldWebResult      = "web_result"
	FieldSearchCoverage = "search_coverage"
)

// ValidationIssue records a non-fatal data-quality problem found while building atoms
type ValidationIssue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Original string `json:"original,omitempty"`
	Adjusted string `json:"adjusted,omitempty"`
}
