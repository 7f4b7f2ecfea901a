package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ppiankov/riskprobe/internal/extract"
	"github.com/ppiankov/riskprobe/internal/llm"
	"github.com/ppiankov/riskprobe/internal/model"
)

// Keyword scoring constants
const (
	baseScore       = 25
	redFlagWeight   = 25
	ambiguousWeight = 10
	legitWeight     = 8

	// FallbackConfidence is reported whenever the keyword path decided
	FallbackConfidence = 40

	// defaultLLMConfidence is used when the reasoning service omits confidence
	defaultLLMConfidence = 50
)

const systemPrompt = "You are a fraud-risk analyst performing a fast preliminary triage. Respond with a single JSON object and nothing else."

// Classifier performs the preliminary risk classification
type Classifier struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewClassifier creates a classifier. A nil provider uses keyword scoring only.
func NewClassifier(provider llm.Provider, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, logger: logger}
}

// Classify returns the triage result for a subject. It never fails:
// any reasoning-service problem falls back to keyword scoring.
func (c *Classifier) Classify(ctx context.Context, profile model.SubjectProfile) model.TriageResult {
	if c.provider != nil {
		result, err := c.classifyLLM(ctx, profile)
		if err == nil {
			return result
		}

		var perr *llm.ParseError
		if errors.As(err, &perr) {
			c.logger.Warn("triage response unparseable, using keyword fallback", "provider", c.provider.Name(), "error", err)
		} else {
			c.logger.Warn("triage reasoning call failed, using keyword fallback", "provider", c.provider.Name(), "error", err)
		}
	}

	return KeywordTriage(profile)
}

// KeywordTriage scores the description against the red-flag, ambiguous and legitimacy term tables
func KeywordTriage(profile model.SubjectProfile) model.TriageResult {
	text := profile.Text()
	red := extract.RedFlags.Scan(text)
	ambiguous := extract.Ambiguous.Scan(text)
	legit := extract.TriageLegitimacy.Scan(text)

	score := baseScore +
		redFlagWeight*red.Count() +
		ambiguousWeight*ambiguous.Count() -
		legitWeight*legit.Count()
	score = clampScore(float64(score))
	level := model.RiskLevelForScore(score)

	var factors []string
	for _, term := range red.Terms {
		factors = append(factors, "red flag: "+term)
	}
	for _, term := range ambiguous.Terms {
		factors = append(factors, "needs investigation: "+term)
	}

	return model.TriageResult{
		RiskLevel:          level,
		InitialScore:       score,
		Strategy:           model.StrategyFor(level),
		Confidence:         FallbackConfidence,
		RiskFactors:        factors,
		InvestigationFocus: focusFor(red.Count() > 0, ambiguous.Count() > 0),
		Method:             model.TriageKeyword,
	}
}

// llmTriage is the record the reasoning service is asked to return
type llmTriage struct {
	RiskLevel          string   `json:"riskLevel"`
	InitialScore       *float64 `json:"initialScore"`
	Confidence         *float64 `json:"confidence"`
	RiskFactors        []string `json:"riskFactors"`
	InvestigationFocus []string `json:"investigationFocus"`
	ScrapingPriority   []string `json:"scrapingPriority"`
}

func (c *Classifier) classifyLLM(ctx context.Context, profile model.SubjectProfile) (model.TriageResult, error) {
	resp, err := c.provider.Infer(ctx, llm.InferRequest{
		System:    systemPrompt,
		Prompt:    buildPrompt(profile),
		MaxTokens: 400,
	})
	if err != nil {
		return model.TriageResult{}, err
	}

	var rec llmTriage
	if err := llm.DecodeRecord(resp.Text, &rec); err != nil {
		return model.TriageResult{}, err
	}
	if rec.InitialScore == nil {
		return model.TriageResult{}, &llm.ParseError{Reason: "initialScore missing", Raw: resp.Text}
	}

	// Out-of-range numbers are clamped, never trusted
	score := clampScore(*rec.InitialScore)
	confidence := defaultLLMConfidence
	if rec.Confidence != nil {
		confidence = clampScore(*rec.Confidence)
	}

	level, err := model.ParseRiskLevel(rec.RiskLevel)
	if err != nil {
		level = model.RiskLevelForScore(score)
	}

	return model.TriageResult{
		RiskLevel:          level,
		InitialScore:       score,
		Strategy:           model.StrategyFor(level),
		Confidence:         confidence,
		RiskFactors:        rec.RiskFactors,
		InvestigationFocus: rec.InvestigationFocus,
		ScrapingPriority:   rec.ScrapingPriority,
		Method:             model.TriageLLM,
	}, nil
}

func buildPrompt(profile model.SubjectProfile) string {
	var b strings.Builder
	b.WriteString("Assess the preliminary fraud risk of this business before any research is done.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	fmt.Fprintf(&b, "Description: %s\n", profile.Description)
	if profile.Region != "" {
		fmt.Fprintf(&b, "Region: %s\n", profile.Region)
	}
	if profile.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", profile.Industry)
	}
	b.WriteString(`
Return JSON with exactly these keys:
{"riskLevel": "low|medium|high|critical", "initialScore": 0-100, "confidence": 0-100,
 "riskFactors": [string], "investigationFocus": [string], "scrapingPriority": [string]}`)
	return b.String()
}

func focusFor(redFlags, ambiguous bool) []string {
	switch {
	case redFlags:
		return []string{"fraud reports", "regulatory warnings", "victim complaints"}
	case ambiguous:
		return []string{"regulatory status", "business registration"}
	default:
		return []string{"business registration"}
	}
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}
