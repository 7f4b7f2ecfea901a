package model

import "time"

// AnalysisResult is the complete risk assessment returned to callers
type AnalysisResult struct {
	RequestID         string             `json:"request_id"`
	Subject           SubjectProfile     `json:"subject"`
	FraudScore        int                `json:"fraud_score"` // 0-100, higher is riskier
	RiskLevel         RiskLevel          `json:"risk_level"`
	Confidence        int                `json:"confidence"` // 0-95
	CategoryScores    CategoryScores     `json:"category_scores"`
	EvidenceBreakdown EvidenceBreakdown  `json:"evidence_breakdown"`
	RecommendedAction Action             `json:"recommended_action"`
	EvidenceQuality   EvidenceQuality    `json:"evidence_quality"`
	Triage            *TriageResult      `json:"triage,omitempty"`
	Collection        *CollectionSummary `json:"collection,omitempty"`
	Signals           []Signal           `json:"signals,omitempty"`
	Narrative         *Narrative         `json:"narrative,omitempty"`
	Evidence          []EvidenceAtom     `json:"evidence,omitempty"` // Only populated for evidence-enhanced requests
	Issues            []ValidationIssue  `json:"issues,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	Degraded          bool               `json:"degraded"`
	AnalyzedAt        time.Time          `json:"analyzed_at"`
}

// CategoryScores holds the per-category sub-scores, each 0-100
type CategoryScores struct {
	FraudIndicators    int `json:"fraud_indicators"`
	RegulatoryWarnings int `json:"regulatory_warnings"`
	LegitimacyEvidence int `json:"legitimacy_evidence"`
	PublicSentiment    int `json:"public_sentiment"`
	WebResearchImpact  int `json:"web_research_impact"`
}

// EvidenceBreakdown counts atoms by authority tier and lists the findings behind each category
type EvidenceBreakdown struct {
	Total      int              `json:"total"`
	Registry   int              `json:"registry"`
	Regulator  int              `json:"regulator"`
	News       int              `json:"news"`
	Social     int              `json:"social"`
	Sources    int              `json:"sources"`
	Unverified int              `json:"unverified"`
	Findings   CategoryFindings `json:"findings"`
}

// Finding is one evidence atom cited under a category, with the terms that placed it there
type Finding struct {
	Terms  []string      `json:"terms,omitempty"`
	Source string        `json:"source"`
	URL    string        `json:"url,omitempty"`
	Query  string        `json:"query,omitempty"`
	Tier   AuthorityTier `json:"tier"`
}

// CategoryFindings groups findings per scoring category. An atom may appear under
// several categories; atoms with no category signal land in Neutral.
type CategoryFindings struct {
	Fraud      []Finding `json:"fraud"`
	Regulatory []Finding `json:"regulatory"`
	Legitimacy []Finding `json:"legitimacy"`
	Sentiment  []Finding `json:"sentiment"`
	Neutral    []Finding `json:"neutral"`
}

// Count returns the number of findings across all categories
func (f CategoryFindings) Count() int {
	return len(f.Fraud) + len(f.Regulatory) + len(f.Legitimacy) + len(f.Sentiment) + len(f.Neutral)
}

// CollectionSummary describes what the collector did
type CollectionSummary struct {
	QueriesIssued      int      `json:"queries_issued"`
	SourcesUsed        int      `json:"sources_used"`
	SourcesUnavailable int      `json:"sources_unavailable"`
	ResultsCollected   int      `json:"results_collected"`
	EarlyTerminated    bool     `json:"early_terminated"`
	TerminationReason  string   `json:"termination_reason,omitempty"`
	FallbackUsed       bool     `json:"fallback_used"`
	DeadlineExceeded   bool     `json:"deadline_exceeded"`
	Queries            []string `json:"queries,omitempty"`
}

// Action is the recommended follow-up
type Action string

const (
	ActionApprove      Action = "approve"
	ActionInvestigate  Action = "investigate"
	ActionReject       Action = "reject"
	ActionManualReview Action = "manual_review"
)

// EvidenceQuality rates how much usable evidence backed the score
type EvidenceQuality string

const (
	QualityComprehensive EvidenceQuality = "comprehensive"
	QualityGood          EvidenceQuality = "good"
	QualityLimited       EvidenceQuality = "limited"
	QualityMinimal       EvidenceQuality = "minimal"
)

// Signal represents a scoring component with transparent formula and inputs
type Signal struct {
	Type        SignalType         `json:"type"`
	Severity    SignalSeverity     `json:"severity"`
	Description string             `json:"description"`
	Formula     string             `json:"formula,omitempty"`
	Inputs      map[string]float64 `json:"inputs,omitempty"`
}

// SignalType classifies the scoring component
type SignalType string

const (
	SignalFraudIndicators    SignalType = "fraud_indicators"
	SignalRegulatoryWarnings SignalType = "regulatory_warnings"
	SignalLegitimacy         SignalType = "legitimacy_evidence"
	SignalPublicSentiment    SignalType = "public_sentiment"
	SignalWebResearchImpact  SignalType = "web_research_impact"
	SignalEvidenceQuality    SignalType = "evidence_quality"
	SignalFraudScore         SignalType = "fraud_score"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// NarrativeSource records whether the narrative came from the reasoning service
type NarrativeSource string

const (
	NarrativeLLM      NarrativeSource = "llm"
	NarrativeTemplate NarrativeSource = "template"
)

// Narrative is the human-readable explanation. It never affects scoring.
type Narrative struct {
	Summary             string          `json:"summary"`
	KeyFindings         []string        `json:"key_findings"`
	RiskExplanation     string          `json:"risk_explanation"`
	Recommendations     []string        `json:"recommendations"`
	ConfidenceReasoning string          `json:"confidence_reasoning"`
	BusinessContext     string          `json:"business_context"`
	Source              NarrativeSource `json:"source"`
	Provider            string          `json:"provider,omitempty"`
}

// DegradedResult is the minimal answer returned when the pipeline fails unexpectedly
func DegradedResult(requestID string, profile SubjectProfile, reason string) *AnalysisResult {
	return &AnalysisResult{
		RequestID:         requestID,
		Subject:           profile,
		FraudScore:        50,
		RiskLevel:         RiskMedium,
		Confidence:        0,
		RecommendedAction: ActionManualReview,
		EvidenceQuality:   QualityMinimal,
		Warnings:          []string{reason},
		Degraded:          true,
		AnalyzedAt:        time.Now().UTC(),
	}
}
