package validate

import (
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ppiankov/riskprobe/internal/model"
)

func TestAtomBuilder_Defaults(t *testing.T) {
	atom, issues, err := NewAtom("searchapi").
		Value("Acme Ltd. Registered with Companies House").
		URL("https://example.com").
		Build()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("Expected no issues, got %v", issues)
	}

	if atom.Confidence != model.DefaultConfidence {
		t.Errorf("Expected default confidence %v, got %v", model.DefaultConfidence, atom.Confidence)
	}
	if atom.Tier != model.TierSocial {
		t.Errorf("Expected default tier social, got %v", atom.Tier)
	}
	if atom.Field != model.FieldWebResult {
		t.Errorf("Expected field %s, got %s", model.FieldWebResult, atom.Field)
	}
	if atom.Verification != model.VerificationUnverified {
		t.Errorf("Expected unverified, got %s", atom.Verification)
	}
	if atom.Timestamp.IsZero() || atom.Timestamp.Location() != time.UTC {
		t.Errorf("Expected UTC timestamp, got %v", atom.Timestamp)
	}
}

func TestAtomBuilder_Clamps(t *testing.T) {
	tests := []struct {
		name           string
		tier           int
		confidence     float64
		wantTier       model.AuthorityTier
		wantConfidence float64
		wantIssues     int
	}{
		{"in range", 1, 0.9, model.TierRegulator, 0.9, 0},
		{"tier too high", 7, 0.5, model.TierSocial, 0.5, 1},
		{"tier negative", -2, 0.5, model.TierRegistry, 0.5, 1},
		{"confidence too high", 2, 1.7, model.TierNews, 1, 1},
		{"confidence negative", 2, -0.3, model.TierNews, 0, 1},
		{"confidence NaN", 2, math.NaN(), model.TierNews, model.DefaultConfidence, 1},
		{"both out of range", 12, 3, model.TierSocial, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atom, issues, err := NewAtom("searchapi").
				Value("text").
				Tier(tt.tier).
				Confidence(tt.confidence).
				Build()
			if err != nil {
				t.Fatalf("Expected clamping, not an error: %v", err)
			}
			if atom.Tier != tt.wantTier {
				t.Errorf("Expected tier %v, got %v", tt.wantTier, atom.Tier)
			}
			if atom.Confidence != tt.wantConfidence {
				t.Errorf("Expected confidence %v, got %v", tt.wantConfidence, atom.Confidence)
			}
			if len(issues) != tt.wantIssues {
				t.Errorf("Expected %d issues, got %d", tt.wantIssues, len(issues))
			}
		})
	}
}

func TestAtomBuilder_InvalidVerification(t *testing.T) {
	atom, issues, err := NewAtom("searchapi").
		Value("text").
		Verification(model.Verification("certain")).
		Build()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if atom.Verification != model.VerificationUnverified {
		t.Errorf("Expected unverified, got %s", atom.Verification)
	}
	if len(issues) != 1 || issues[0].Original != "certain" {
		t.Errorf("Expected one verification issue, got %v", issues)
	}
}

func TestAtomBuilder_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		builder *AtomBuilder
		field   string
	}{
		{"missing source", NewAtom(" ").Value("text"), "source"},
		{"missing field", NewAtom("searchapi").Field("").Value("text"), "field"},
		{"missing value and url", NewAtom("searchapi"), "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.builder.Build()
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func TestAtomBuilder_URLOnly(t *testing.T) {
	atom, _, err := NewAtom("direct").URL(" https://example.com/x ").Build()
	if err != nil {
		t.Fatalf("Expected URL-only atom to build, got %v", err)
	}
	if atom.URL != "https://example.com/x" {
		t.Errorf("Expected trimmed URL, got %q", atom.URL)
	}
}

func TestAtomBuilder_RangesHoldForAllInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	tiers := []int{math.MinInt, -1000, -1, 0, 1, 2, 3, 4, 1000, math.MaxInt}
	confidences := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e9, -0.0001, 0, 1, 1.0001, 1e9}

	for i := 0; i < 2000; i++ {
		tier := tiers[rng.IntN(len(tiers))]
		if rng.IntN(2) == 0 {
			tier = rng.IntN(21) - 10
		}
		confidence := confidences[rng.IntN(len(confidences))]
		if rng.IntN(2) == 0 {
			confidence = rng.Float64()*5 - 2
		}

		atom, issues, err := NewAtom("searchapi").
			Value("Acme Ltd").
			Tier(tier).
			Confidence(confidence).
			Logger(slog.New(slog.NewTextHandler(io.Discard, nil))).
			Build()
		if err != nil {
			t.Fatalf("tier=%d confidence=%v: expected no error, got %v", tier, confidence, err)
		}

		if atom.Tier < model.MinTier || atom.Tier > model.MaxTier {
			t.Errorf("tier=%d: expected tier in [0,3], got %d", tier, atom.Tier)
		}
		if math.IsNaN(atom.Confidence) || atom.Confidence < 0 || atom.Confidence > 1 {
			t.Errorf("confidence=%v: expected confidence in [0,1], got %v", confidence, atom.Confidence)
		}

		inRange := tier >= 0 && tier <= 3 && !math.IsNaN(confidence) && confidence >= 0 && confidence <= 1
		if inRange && len(issues) != 0 {
			t.Errorf("tier=%d confidence=%v: expected no issues, got %v", tier, confidence, issues)
		}
		if !inRange && len(issues) == 0 {
			t.Errorf("tier=%d confidence=%v: expected a clamp issue", tier, confidence)
		}
	}
}
