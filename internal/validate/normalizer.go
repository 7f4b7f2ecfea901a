package validate

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/model"
)

// coverageConfidence is assigned to atoms recording that a source answered with nothing
const coverageConfidence = 0.5

// SourceBatch is the raw output of one successful source query
type SourceBatch struct {
	Source     string
	Query      string
	Category   string
	Results    []connector.SearchResult
	ObservedAt time.Time
}

// Evidence is the validated, deduplicated atom set for one analysis
type Evidence struct {
	Atoms       []model.EvidenceAtom
	Issues      []model.ValidationIssue
	Warnings    []string
	SourcesUsed int // Successful source responses
	Dropped     int
}

// Normalizer turns raw source batches into evidence atoms
type Normalizer struct {
	classifier *AuthorityClassifier
	logger     *slog.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(classifier *AuthorityClassifier, logger *slog.Logger) *Normalizer {
	if classifier == nil {
		classifier = NewAuthorityClassifier(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{classifier: classifier, logger: logger}
}

// Normalize builds atoms for every result in batches.
// A batch with no usable results yields a single tier-3 coverage atom.
func (n *Normalizer) Normalize(subject model.SubjectProfile, batches []SourceBatch) Evidence {
	var ev Evidence
	seen := make(map[string]bool)

	for _, batch := range batches {
		built := 0
		for _, result := range batch.Results {
			tier := n.classifier.Classify(result.URL)
			builder := NewAtom(batch.Source).
				Field(model.FieldWebResult).
				Value(result.Text()).
				URL(result.URL).
				Query(batch.Query).
				Category(batch.Category).
				Tier(int(tier)).
				Verification(verificationFor(subject.Name, result, tier)).
				Timestamp(batch.ObservedAt).
				Logger(n.logger)
			if n.add(&ev, seen, builder) {
				built++
			}
		}

		if built == 0 {
			msg := "returned no results"
			if len(batch.Results) > 0 {
				msg = "returned no usable results"
			}
			builder := NewAtom(batch.Source).
				Field(model.FieldSearchCoverage).
				Value(fmt.Sprintf("%s %s", batch.Source, msg)).
				Query(batch.Query).
				Category(batch.Category).
				Tier(int(model.TierSocial)).
				Confidence(coverageConfidence).
				Timestamp(batch.ObservedAt).
				Logger(n.logger)
			n.add(&ev, seen, builder)
		}
	}

	ev.SourcesUsed = len(batches)

	if ev.SourcesUsed > 0 && len(ev.Atoms) == 0 {
		msg := fmt.Sprintf("%d sources answered but no evidence atoms survived validation", ev.SourcesUsed)
		n.logger.Warn("evidence invariant violated", "sources_used", ev.SourcesUsed, "dropped", ev.Dropped)
		ev.Warnings = append(ev.Warnings, msg)
	}

	return ev
}

// add builds and records one atom. It reports whether the atom was valid, even when it was a duplicate.
func (n *Normalizer) add(ev *Evidence, seen map[string]bool, builder *AtomBuilder) bool {
	atom, issues, err := builder.Build()
	if err != nil {
		n.logger.Debug("dropping evidence atom", "error", err)
		ev.Dropped++
		return false
	}
	ev.Issues = append(ev.Issues, issues...)

	key := dedupeKey(atom)
	if seen[key] {
		return true
	}
	seen[key] = true
	ev.Atoms = append(ev.Atoms, atom)
	return true
}

// dedupeKey identifies an atom by URL and field; URL-less atoms fall back to source and query
func dedupeKey(atom model.EvidenceAtom) string {
	if atom.URL != "" {
		return atom.Field + "\x00" + strings.ToLower(atom.URL)
	}
	return atom.Field + "\x00" + atom.Source + "\x00" + strings.ToLower(atom.Query)
}

// verificationFor rates how strongly a result is tied to the subject
func verificationFor(name string, result connector.SearchResult, tier model.AuthorityTier) model.Verification {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return model.VerificationUnverified
	}

	inTitle := strings.Contains(strings.ToLower(result.Title), name)
	inText := inTitle || strings.Contains(strings.ToLower(result.Snippet), name)

	switch {
	case tier == model.TierRegistry && inTitle:
		return model.VerificationExact
	case tier <= model.TierRegulator && inText:
		return model.VerificationVerified
	case inText:
		return model.VerificationPartial
	default:
		return model.VerificationUnverified
	}
}
