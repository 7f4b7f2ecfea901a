package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ppiankov/riskprobe/internal/llm"
	"github.com/ppiankov/riskprobe/internal/model"
)

const systemPrompt = "You are a fraud-risk analyst explaining a finished assessment. You describe evidence, you never assert facts beyond it. Respond with a single JSON object and nothing else."

// maxPromptURLs limits the evidence URLs listed in the prompt
const maxPromptURLs = 20

// Synthesizer explains a finished analysis. It never changes scores.
type Synthesizer struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewSynthesizer creates a synthesizer. A nil provider always uses the template.
func NewSynthesizer(provider llm.Provider, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{provider: provider, logger: logger}
}

// ProviderName returns the reasoning service name, or empty when disabled
func (s *Synthesizer) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Explain returns a narrative for result. Any reasoning-service failure falls back to the template.
func (s *Synthesizer) Explain(ctx context.Context, result *model.AnalysisResult, evidence []model.EvidenceAtom) *model.Narrative {
	if s.provider != nil {
		n, err := s.explainLLM(ctx, result, evidence)
		if err == nil {
			return n
		}
		s.logger.Warn("narrative synthesis failed, using template", "provider", s.provider.Name(), "error", err)
	}
	return Template(result)
}

// llmNarrative is the record the reasoning service is asked to return
type llmNarrative struct {
	Summary             string   `json:"summary"`
	KeyFindings         []string `json:"keyFindings"`
	RiskExplanation     string   `json:"riskExplanation"`
	Recommendations     []string `json:"recommendations"`
	ConfidenceReasoning string   `json:"confidenceReasoning"`
	BusinessContext     string   `json:"businessContext"`
}

func (s *Synthesizer) explainLLM(ctx context.Context, result *model.AnalysisResult, evidence []model.EvidenceAtom) (*model.Narrative, error) {
	allowed := evidenceURLs(evidence)

	resp, err := s.provider.Infer(ctx, llm.InferRequest{
		System: systemPrompt,
		Prompt: BuildPrompt(result, allowed),
	})
	if err != nil {
		return nil, err
	}

	var rec llmNarrative
	if err := llm.DecodeRecord(resp.Text, &rec); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Summary) == "" {
		return nil, &llm.ParseError{Reason: "summary missing", Raw: resp.Text}
	}

	// Citations outside the collected evidence are not trusted
	if stray := strayURLs(rec, allowed); len(stray) > 0 {
		return nil, &llm.ParseError{
			Reason: fmt.Sprintf("narrative cites %d URLs outside the evidence", len(stray)),
			Raw:    resp.Text,
		}
	}

	return &model.Narrative{
		Summary:             rec.Summary,
		KeyFindings:         nonNil(rec.KeyFindings),
		RiskExplanation:     rec.RiskExplanation,
		Recommendations:     nonNil(rec.Recommendations),
		ConfidenceReasoning: rec.ConfidenceReasoning,
		BusinessContext:     rec.BusinessContext,
		Source:              model.NarrativeLLM,
		Provider:            s.provider.Name(),
	}, nil
}

// BuildPrompt constructs the narrative prompt restricted to the collected evidence URLs
func BuildPrompt(result *model.AnalysisResult, allowedURLs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Explain this fraud-risk assessment of a business to a compliance reviewer.

RULES:
1. You may ONLY cite URLs from this list:%s
2. Do not speculate beyond the listed evidence. If evidence is thin, say so.
3. Do not change or dispute the scores.

Assessment:
- Subject: %s
- Description: %s
- Fraud score: %d/100 (%s risk)
- Confidence: %d/100
- Evidence quality: %s
- Recommended action: %s
- Evidence: %d atoms (%d registry, %d regulator, %d news, %d social)

Signals:
`, joinURLs(allowedURLs),
		result.Subject.Name, result.Subject.Description,
		result.FraudScore, result.RiskLevel, result.Confidence,
		result.EvidenceQuality, result.RecommendedAction,
		result.EvidenceBreakdown.Total, result.EvidenceBreakdown.Registry, result.EvidenceBreakdown.Regulator,
		result.EvidenceBreakdown.News, result.EvidenceBreakdown.Social)

	for _, signal := range result.Signals {
		fmt.Fprintf(&b, "- %s: %s\n", signal.Type, signal.Description)
	}

	b.WriteString(`
Return JSON with exactly these keys:
{"summary": string, "keyFindings": [string], "riskExplanation": string,
 "recommendations": [string], "confidenceReasoning": string, "businessContext": string}`)
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "\n- (no evidence URLs available)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= maxPromptURLs {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-maxPromptURLs)
			break
		}
		b.WriteString("\n- " + u)
	}
	return b.String()
}

func evidenceURLs(evidence []model.EvidenceAtom) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, a := range evidence {
		if a.URL != "" && !seen[a.URL] {
			seen[a.URL] = true
			urls = append(urls, a.URL)
		}
	}
	return urls
}

func strayURLs(rec llmNarrative, allowed []string) []string {
	ok := make(map[string]bool, len(allowed))
	for _, u := range allowed {
		ok[u] = true
	}

	text := strings.Join(append(append([]string{
		rec.Summary, rec.RiskExplanation, rec.ConfidenceReasoning, rec.BusinessContext,
	}, rec.KeyFindings...), rec.Recommendations...), "\n")

	var stray []string
	for _, u := range llm.ExtractURLs(text) {
		if !ok[u] {
			stray = append(stray, u)
		}
	}
	return stray
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Template builds the deterministic narrative for a risk level
func Template(result *model.AnalysisResult) *model.Narrative {
	name := result.Subject.Name
	b := result.EvidenceBreakdown

	n := &model.Narrative{
		KeyFindings:         keyFindings(result),
		ConfidenceReasoning: confidenceReasoning(result),
		BusinessContext:     businessContext(result),
		Source:              model.NarrativeTemplate,
	}

	switch result.RiskLevel {
	case model.RiskCritical:
		n.Summary = fmt.Sprintf("%s shows critical fraud risk (score %d/100).", name, result.FraudScore)
		n.RiskExplanation = "Strong fraud or regulatory indicators dominate the collected evidence and outweigh any legitimacy signals."
		n.Recommendations = []string{
			"Do not onboard or transact.",
			"Escalate to the compliance team.",
			"Preserve the collected evidence for audit.",
		}
	case model.RiskHigh:
		n.Summary = fmt.Sprintf("%s shows high fraud risk (score %d/100).", name, result.FraudScore)
		n.RiskExplanation = "Multiple adverse indicators were found and legitimacy evidence is weak or missing."
		n.Recommendations = []string{
			"Hold onboarding pending manual review.",
			"Verify registration directly with the relevant registry or regulator.",
			"Request ownership and licensing documentation.",
		}
	case model.RiskMedium:
		n.Summary = fmt.Sprintf("%s shows moderate fraud risk (score %d/100).", name, result.FraudScore)
		n.RiskExplanation = "The evidence is mixed or thin; neither fraud nor legitimacy indicators are conclusive."
		n.Recommendations = []string{
			"Investigate further before approval.",
			"Confirm business registration and physical address.",
		}
	default:
		n.Summary = fmt.Sprintf("%s shows low fraud risk (score %d/100).", name, result.FraudScore)
		n.RiskExplanation = "Legitimacy indicators outweigh adverse findings in the collected evidence."
		n.Recommendations = []string{
			"Approve with standard monitoring.",
		}
	}

	if b.Total == 0 {
		n.Recommendations = append(n.Recommendations, "Re-run the analysis when evidence sources are available.")
	}
	return n
}

func keyFindings(result *model.AnalysisResult) []string {
	s := result.CategoryScores
	b := result.EvidenceBreakdown

	findings := []string{
		fmt.Sprintf("Evidence: %d atoms from %d sources (%d registry, %d regulator, %d news, %d social).",
			b.Total, b.Sources, b.Registry, b.Regulator, b.News, b.Social),
	}

	// Strongest categories first
	type category struct {
		label string
		score int
	}
	categories := []category{
		{"Fraud indicators", s.FraudIndicators},
		{"Regulatory warnings", s.RegulatoryWarnings},
		{"Legitimacy evidence", s.LegitimacyEvidence},
		{"Negative public sentiment", s.PublicSentiment},
	}
	sort.SliceStable(categories, func(i, j int) bool { return categories[i].score > categories[j].score })
	for _, c := range categories {
		if c.score > 0 {
			findings = append(findings, fmt.Sprintf("%s: %d/100.", c.label, c.score))
		}
	}

	if result.Collection != nil && result.Collection.EarlyTerminated {
		findings = append(findings, fmt.Sprintf("Collection stopped early: %s.", result.Collection.TerminationReason))
	}
	return findings
}

func confidenceReasoning(result *model.AnalysisResult) string {
	reason := fmt.Sprintf("Confidence %d/100 reflects %s evidence quality.", result.Confidence, result.EvidenceQuality)
	if result.EvidenceBreakdown.Unverified > 0 {
		reason += fmt.Sprintf(" %d atoms could not be tied to the subject by name.", result.EvidenceBreakdown.Unverified)
	}
	return reason
}

func businessContext(result *model.AnalysisResult) string {
	p := result.Subject
	var parts []string
	if p.Industry != "" {
		parts = append(parts, "industry "+p.Industry)
	}
	if p.Region != "" {
		parts = append(parts, "region "+p.Region)
	}
	if len(parts) == 0 {
		return "No industry or region was supplied; generic research patterns were used."
	}
	return fmt.Sprintf("Assessed with research patterns for %s.", strings.Join(parts, ", "))
}
