package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ppiankov/riskprobe/internal/llm"
	"github.com/ppiankov/riskprobe/internal/llm/mocks"
	"github.com/ppiankov/riskprobe/internal/model"
)

func sampleResult(level model.RiskLevel, score int) *model.AnalysisResult {
	return &model.AnalysisResult{
		Subject:           model.SubjectProfile{Name: "Acme Ltd", Description: "accountancy", Region: "UK"},
		FraudScore:        score,
		RiskLevel:         level,
		Confidence:        49,
		EvidenceQuality:   model.QualityLimited,
		RecommendedAction: model.ActionApprove,
		CategoryScores:    model.CategoryScores{LegitimacyEvidence: 92},
		EvidenceBreakdown: model.EvidenceBreakdown{Total: 2, Registry: 1, Regulator: 1, Sources: 1},
	}
}

var sampleEvidence = []model.EvidenceAtom{
	{URL: "https://opencorporates.com/acme", Field: model.FieldWebResult},
	{URL: "https://fca.org.uk/acme", Field: model.FieldWebResult},
}

func TestSynthesizer_Explain_LLM(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("openai").AnyTimes()
	provider.EXPECT().Infer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.InferRequest) (*llm.InferResponse, error) {
			assert.Contains(t, req.Prompt, "https://opencorporates.com/acme")
			assert.Contains(t, req.Prompt, "Fraud score: 3/100 (low risk)")
			return &llm.InferResponse{Text: "Here you go:\n```json\n" +
				`{"summary":"Acme is registered (https://opencorporates.com/acme).","keyFindings":["registry entry"],` +
				`"riskExplanation":"legitimacy dominates","recommendations":["approve"],` +
				`"confidenceReasoning":"two authoritative atoms","businessContext":"UK accountancy"}` + "\n```"}, nil
		})

	s := NewSynthesizer(provider, nil)
	n := s.Explain(context.Background(), sampleResult(model.RiskLow, 3), sampleEvidence)

	require.NotNil(t, n)
	assert.Equal(t, model.NarrativeLLM, n.Source)
	assert.Equal(t, "openai", n.Provider)
	assert.Equal(t, []string{"registry entry"}, n.KeyFindings)
	assert.Equal(t, "UK accountancy", n.BusinessContext)
}

func TestSynthesizer_Explain_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		resp *llm.InferResponse
		err  error
	}{
		{name: "provider error", err: errors.New("connection refused")},
		{name: "prose only", resp: &llm.InferResponse{Text: "I cannot help with that."}},
		{name: "missing summary", resp: &llm.InferResponse{Text: `{"keyFindings":["x"]}`}},
		{name: "stray citation", resp: &llm.InferResponse{Text: `{"summary":"see https://evil.example/acme"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			provider := mocks.NewMockProvider(ctrl)
			provider.EXPECT().Name().Return("openai").AnyTimes()
			provider.EXPECT().Infer(gomock.Any(), gomock.Any()).Return(tt.resp, tt.err)

			result := sampleResult(model.RiskHigh, 70)
			n := NewSynthesizer(provider, nil).Explain(context.Background(), result, sampleEvidence)

			require.NotNil(t, n)
			assert.Equal(t, model.NarrativeTemplate, n.Source)
			assert.Contains(t, n.Summary, "high fraud risk")
			// Narration never changes the score
			assert.Equal(t, 70, result.FraudScore)
		})
	}
}

func TestSynthesizer_Disabled(t *testing.T) {
	s := NewSynthesizer(nil, nil)

	assert.Empty(t, s.ProviderName())

	n := s.Explain(context.Background(), sampleResult(model.RiskLow, 10), nil)
	assert.Equal(t, model.NarrativeTemplate, n.Source)
}

func TestTemplate_PerLevel(t *testing.T) {
	tests := []struct {
		level   model.RiskLevel
		summary string
		first   string
	}{
		{model.RiskLow, "low fraud risk", "Approve with standard monitoring."},
		{model.RiskMedium, "moderate fraud risk", "Investigate further before approval."},
		{model.RiskHigh, "high fraud risk", "Hold onboarding pending manual review."},
		{model.RiskCritical, "critical fraud risk", "Do not onboard or transact."},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			n := Template(sampleResult(tt.level, 50))

			assert.Contains(t, n.Summary, tt.summary)
			require.NotEmpty(t, n.Recommendations)
			assert.Equal(t, tt.first, n.Recommendations[0])
			assert.NotEmpty(t, n.RiskExplanation)
			assert.Equal(t, "Assessed with research patterns for region UK.", n.BusinessContext)
		})
	}
}

func TestTemplate_KeyFindings(t *testing.T) {
	result := sampleResult(model.RiskMedium, 40)
	result.CategoryScores = model.CategoryScores{FraudIndicators: 20, LegitimacyEvidence: 60}
	result.Collection = &model.CollectionSummary{EarlyTerminated: true, TerminationReason: "fraud_signals"}

	n := Template(result)

	assert.Equal(t, []string{
		"Evidence: 2 atoms from 1 sources (1 registry, 1 regulator, 0 news, 0 social).",
		"Legitimacy evidence: 60/100.",
		"Fraud indicators: 20/100.",
		"Collection stopped early: fraud_signals.",
	}, n.KeyFindings)
}

func TestTemplate_NoEvidence(t *testing.T) {
	result := sampleResult(model.RiskMedium, 50)
	result.EvidenceBreakdown = model.EvidenceBreakdown{}
	result.Subject.Region = ""

	n := Template(result)

	assert.Contains(t, n.Recommendations, "Re-run the analysis when evidence sources are available.")
	assert.Contains(t, n.BusinessContext, "No industry or region")
}
