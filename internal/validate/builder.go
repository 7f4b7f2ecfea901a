package validate

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
)

// ValidationError reports an atom that cannot be built at all
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid evidence atom %s: %s", e.Field, e.Message)
}

// AtomBuilder constructs EvidenceAtoms with every field checked at Build time
type AtomBuilder struct {
	source        string
	field         string
	value         string
	url           string
	query         string
	category      string
	tier          int
	confidence    float64
	confidenceSet bool
	verification  model.Verification
	timestamp     time.Time
	logger        *slog.Logger
}

// NewAtom starts a builder for an atom produced by source
func NewAtom(source string) *AtomBuilder {
	return &AtomBuilder{
		source: source,
		field:  model.FieldWebResult,
		tier:   int(model.TierSocial),
		logger: slog.Default(),
	}
}

// Field sets what the atom speaks to
func (b *AtomBuilder) Field(field string) *AtomBuilder { b.field = field; return b }

// Value sets the atom text
func (b *AtomBuilder) Value(value string) *AtomBuilder { b.value = value; return b }

// URL sets the origin URL
func (b *AtomBuilder) URL(u string) *AtomBuilder { b.url = u; return b }

// Query records the query that surfaced the atom
func (b *AtomBuilder) Query(q string) *AtomBuilder { b.query = q; return b }

// Category records the query category
func (b *AtomBuilder) Category(c string) *AtomBuilder { b.category = c; return b }

// Tier sets the raw authority tier; it is range-checked at Build
func (b *AtomBuilder) Tier(tier int) *AtomBuilder { b.tier = tier; return b }

// Confidence sets the raw confidence; it is range-checked at Build
func (b *AtomBuilder) Confidence(c float64) *AtomBuilder {
	b.confidence = c
	b.confidenceSet = true
	return b
}

// Verification sets the verification level
func (b *AtomBuilder) Verification(v model.Verification) *AtomBuilder { b.verification = v; return b }

// Timestamp sets the observation time
func (b *AtomBuilder) Timestamp(t time.Time) *AtomBuilder { b.timestamp = t; return b }

// Logger sets the logger used to report clamps
func (b *AtomBuilder) Logger(l *slog.Logger) *AtomBuilder {
	if l != nil {
		b.logger = l
	}
	return b
}

// Build validates the fields and returns the atom with any issues found.
// Out-of-range tier and confidence are clamped and reported, never dropped.
func (b *AtomBuilder) Build() (model.EvidenceAtom, []model.ValidationIssue, error) {
	if strings.TrimSpace(b.source) == "" {
		return model.EvidenceAtom{}, nil, &ValidationError{Field: "source", Message: "is required"}
	}
	if strings.TrimSpace(b.field) == "" {
		return model.EvidenceAtom{}, nil, &ValidationError{Field: "field", Message: "is required"}
	}
	if strings.TrimSpace(b.value) == "" && strings.TrimSpace(b.url) == "" {
		return model.EvidenceAtom{}, nil, &ValidationError{Field: "value", Message: "value or url is required"}
	}

	var issues []model.ValidationIssue

	tier := b.tier
	if tier < int(model.MinTier) || tier > int(model.MaxTier) {
		clamped := int(clampTier(model.AuthorityTier(tier)))
		issues = append(issues, b.clampIssue("tier", strconv.Itoa(tier), strconv.Itoa(clamped)))
		tier = clamped
	}

	confidence := model.DefaultConfidence
	if b.confidenceSet {
		confidence = b.confidence
		switch {
		case math.IsNaN(confidence):
			issues = append(issues, b.clampIssue("confidence", "NaN", formatFloat(model.DefaultConfidence)))
			confidence = model.DefaultConfidence
		case confidence < 0 || confidence > 1:
			clamped := math.Max(0, math.Min(1, confidence))
			issues = append(issues, b.clampIssue("confidence", formatFloat(confidence), formatFloat(clamped)))
			confidence = clamped
		}
	}

	verification := b.verification
	if verification == "" {
		verification = model.VerificationUnverified
	} else if !verification.Valid() {
		issues = append(issues, b.clampIssue("verification", string(verification), string(model.VerificationUnverified)))
		verification = model.VerificationUnverified
	}

	ts := b.timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return model.EvidenceAtom{
		Tier:         model.AuthorityTier(tier),
		Source:       b.source,
		Field:        b.field,
		Value:        strings.TrimSpace(b.value),
		URL:          strings.TrimSpace(b.url),
		Timestamp:    ts.UTC(),
		Verification: verification,
		Confidence:   confidence,
		Query:        b.query,
		Category:     b.category,
	}, issues, nil
}

func (b *AtomBuilder) clampIssue(field, original, adjusted string) model.ValidationIssue {
	b.logger.Warn("evidence atom field out of range",
		"source", b.source,
		"field", field,
		"original", original,
		"adjusted", adjusted,
	)
	return model.ValidationIssue{
		Field:    field,
		Message:  fmt.Sprintf("%s out of range, clamped", field),
		Original: original,
		Adjusted: adjusted,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
