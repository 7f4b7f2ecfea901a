package model

import (
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the four-bucket risk classification
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ParseRiskLevel maps free text to a risk level
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	case RiskCritical:
		return RiskCritical, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// RiskLevelForScore buckets a 0-100 score: 0-25 low, 26-50 medium, 51-75 high, 76-100 critical
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score <= 25:
		return RiskLow
	case score <= 50:
		return RiskMedium
	case score <= 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// StrategyName identifies a collection budget
type StrategyName string

const (
	StrategyLight  StrategyName = "light"
	StrategyMedium StrategyName = "medium"
	StrategyDeep   StrategyName = "deep"
)

// Strategy is the collection budget chosen by triage
type Strategy struct {
	Name                 StrategyName  `json:"name"`
	MaxSources           int           `json:"max_sources"`
	MaxResultsPerSource  int           `json:"max_results_per_source"`
	Timeout              time.Duration `json:"timeout"`
	TerminationThreshold int           `json:"termination_threshold"` // Minimum results before the legitimacy branch may stop collection
	EarlyTermination     bool          `json:"early_termination"`
}

// StrategyFor returns the strategy for a risk level
func StrategyFor(level RiskLevel) Strategy {
	switch level {
	case RiskLow:
		return LightStrategy()
	case RiskMedium:
		return MediumStrategy()
	default:
		return DeepStrategy()
	}
}

// LightStrategy is used for low-risk subjects
func LightStrategy() Strategy {
	return Strategy{
		Name:                 StrategyLight,
		MaxSources:           3,
		MaxResultsPerSource:  5,
		Timeout:              15 * time.Second,
		TerminationThreshold: 5,
		EarlyTermination:     true,
	}
}

// MediumStrategy is used for medium-risk subjects
func MediumStrategy() Strategy {
	return Strategy{
		Name:                 StrategyMedium,
		MaxSources:           5,
		MaxResultsPerSource:  8,
		Timeout:              30 * time.Second,
		TerminationThreshold: 8,
		EarlyTermination:     true,
	}
}

// DeepStrategy is used for high and critical subjects; it never stops early
func DeepStrategy() Strategy {
	return Strategy{
		Name:                StrategyDeep,
		MaxSources:          8,
		MaxResultsPerSource: 10,
		Timeout:             45 * time.Second,
		EarlyTermination:    false,
	}
}

// Upgrade returns the next deeper strategy (deep stays deep)
func (s Strategy) Upgrade() Strategy {
	switch s.Name {
	case StrategyLight:
		return MediumStrategy()
	default:
		return DeepStrategy()
	}
}

// TriageMethod records how triage reached its decision
type TriageMethod string

const (
	TriageLLM     TriageMethod = "llm"
	TriageKeyword TriageMethod = "keyword"
)

// TriageResult is the preliminary classification
type TriageResult struct {
	RiskLevel          RiskLevel    `json:"risk_level"`
	InitialScore       int          `json:"initial_score"`
	Strategy           Strategy     `json:"strategy"`
	Confidence         int          `json:"confidence"`
	RiskFactors        []string     `json:"risk_factors,omitempty"`
	InvestigationFocus []string     `json:"investigation_focus,omitempty"`
	ScrapingPriority   []string     `json:"scraping_priority,omitempty"`
	Method             TriageMethod `json:"method"`
}
