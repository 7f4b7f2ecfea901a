package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/riskprobe/internal/model"
)

// Renderer writes analysis results as JSON or Markdown
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderReport writes the JSON and Markdown outputs that have a path, reporting each to progress when set
func (r *Renderer) RenderReport(result *model.AnalysisResult, jsonPath, mdPath string, progress io.Writer) error {
	if jsonPath != "" {
		if err := r.RenderJSON(result, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if progress != nil {
			fmt.Fprintf(progress, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(result, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if progress != nil {
			fmt.Fprintf(progress, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	return nil
}

// RenderJSON writes the result as indented JSON to path
func (r *Renderer) RenderJSON(result *model.AnalysisResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the result as a Markdown report to path
func (r *Renderer) RenderMarkdown(result *model.AnalysisResult, path string) error {
	var b strings.Builder
	r.WriteMarkdown(&b, result)
	return writeFile(path, []byte(b.String()))
}

// WriteMarkdown renders the Markdown report to w
func (r *Renderer) WriteMarkdown(w io.Writer, result *model.AnalysisResult) {
	fmt.Fprintf(w, "# Risk assessment: %s\n\n", result.Subject.Name)
	if result.Degraded {
		fmt.Fprintf(w, "> **Degraded result.** The analysis did not complete; manual review is required.\n\n")
	}

	fmt.Fprintf(w, "| | |\n|---|---|\n")
	fmt.Fprintf(w, "| Fraud score | **%d/100** |\n", result.FraudScore)
	fmt.Fprintf(w, "| Risk level | %s |\n", result.RiskLevel)
	fmt.Fprintf(w, "| Confidence | %d/100 |\n", result.Confidence)
	fmt.Fprintf(w, "| Evidence quality | %s |\n", result.EvidenceQuality)
	fmt.Fprintf(w, "| Recommended action | %s |\n", result.RecommendedAction)
	fmt.Fprintf(w, "| Request ID | `%s` |\n\n", result.RequestID)

	fmt.Fprintf(w, "## Subject\n\n%s\n\n", result.Subject.Description)
	if result.Subject.Region != "" || result.Subject.Industry != "" {
		fmt.Fprintf(w, "Region: %s. Industry: %s.\n\n", orDash(result.Subject.Region), orDash(result.Subject.Industry))
	}

	s := result.CategoryScores
	fmt.Fprintf(w, "## Category scores\n\n")
	fmt.Fprintf(w, "| Category | Score |\n|---|---|\n")
	fmt.Fprintf(w, "| Fraud indicators | %d |\n", s.FraudIndicators)
	fmt.Fprintf(w, "| Regulatory warnings | %d |\n", s.RegulatoryWarnings)
	fmt.Fprintf(w, "| Legitimacy evidence | %d |\n", s.LegitimacyEvidence)
	fmt.Fprintf(w, "| Public sentiment (negative) | %d |\n", s.PublicSentiment)
	fmt.Fprintf(w, "| Web research impact | %d |\n\n", s.WebResearchImpact)

	b := result.EvidenceBreakdown
	fmt.Fprintf(w, "## Evidence\n\n")
	fmt.Fprintf(w, "%d atoms from %d sources: %d registry, %d regulator, %d news, %d social (%d unverified).\n\n",
		b.Total, b.Sources, b.Registry, b.Regulator, b.News, b.Social, b.Unverified)

	if b.Findings.Count() > 0 {
		fmt.Fprintf(w, "### Findings by category\n\n")
		writeFindings(w, "Fraud indicators", b.Findings.Fraud)
		writeFindings(w, "Regulatory warnings", b.Findings.Regulatory)
		writeFindings(w, "Legitimacy evidence", b.Findings.Legitimacy)
		writeFindings(w, "Public sentiment", b.Findings.Sentiment)
		fmt.Fprintf(w, "%d further atoms carried no category signal.\n\n", len(b.Findings.Neutral))
	}

	if c := result.Collection; c != nil {
		fmt.Fprintf(w, "Queries issued: %d. Results collected: %d.", c.QueriesIssued, c.ResultsCollected)
		if c.EarlyTerminated {
			fmt.Fprintf(w, " Stopped early (%s).", c.TerminationReason)
		}
		if c.FallbackUsed {
			fmt.Fprintf(w, " Fallback source used.")
		}
		fmt.Fprintf(w, "\n\n")
	}

	if len(result.Evidence) > 0 {
		fmt.Fprintf(w, "| Tier | Source | Evidence |\n|---|---|---|\n")
		for _, a := range result.Evidence {
			text := a.Value
			if a.URL != "" {
				text = fmt.Sprintf("[%s](%s)", escapeCell(a.Value), a.URL)
			}
			fmt.Fprintf(w, "| %s | %s | %s |\n", a.Tier, a.Source, text)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(result.Signals) > 0 {
		fmt.Fprintf(w, "## Signals\n\n")
		for _, sig := range result.Signals {
			fmt.Fprintf(w, "- **%s** (%s): %s\n", sig.Type, sig.Severity, sig.Description)
			if sig.Formula != "" {
				fmt.Fprintf(w, "  - `%s`\n", sig.Formula)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if n := result.Narrative; n != nil {
		fmt.Fprintf(w, "## Narrative (%s)\n\n%s\n\n", n.Source, n.Summary)
		if len(n.KeyFindings) > 0 {
			fmt.Fprintf(w, "### Key findings\n\n")
			for _, f := range n.KeyFindings {
				fmt.Fprintf(w, "- %s\n", f)
			}
			fmt.Fprintf(w, "\n")
		}
		if n.RiskExplanation != "" {
			fmt.Fprintf(w, "### Risk explanation\n\n%s\n\n", n.RiskExplanation)
		}
		if len(n.Recommendations) > 0 {
			fmt.Fprintf(w, "### Recommendations\n\n")
			for _, rec := range n.Recommendations {
				fmt.Fprintf(w, "- %s\n", rec)
			}
			fmt.Fprintf(w, "\n")
		}
		if n.ConfidenceReasoning != "" {
			fmt.Fprintf(w, "### Confidence\n\n%s\n\n", n.ConfidenceReasoning)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "## Warnings\n\n")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
		fmt.Fprintf(w, "\n")
	}

	if r.includeFooter {
		fmt.Fprintf(w, "---\n\n*riskprobe scores how strongly collected public evidence points to fraud risk. It is not a legal determination.*\n")
	}
}

// WriteSummary prints a short human-readable summary
func WriteSummary(w io.Writer, result *model.AnalysisResult) {
	fmt.Fprintf(w, "\n📊 %s\n", result.Subject.Name)
	fmt.Fprintf(w, "   Fraud score: %d/100 (%s risk)\n", result.FraudScore, result.RiskLevel)
	fmt.Fprintf(w, "   Confidence: %d/100, evidence quality: %s\n", result.Confidence, result.EvidenceQuality)
	fmt.Fprintf(w, "   Recommended action: %s\n", result.RecommendedAction)
	if result.Degraded {
		fmt.Fprintf(w, "   ⚠️  Degraded result, manual review required\n")
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "   ⚠️  %s\n", warning)
	}
}

// writeFindings lists one category's findings as bullets
func writeFindings(w io.Writer, title string, findings []model.Finding) {
	if len(findings) == 0 {
		return
	}
	fmt.Fprintf(w, "**%s** (%d)\n\n", title, len(findings))
	for _, f := range findings {
		where := f.Source
		if f.URL != "" {
			where = fmt.Sprintf("<%s>", f.URL)
		}
		fmt.Fprintf(w, "- %s: %s (tier %s)\n", strings.Join(f.Terms, ", "), where, f.Tier)
	}
	fmt.Fprintf(w, "\n")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "[", "(")
	return strings.ReplaceAll(s, "]", ")")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
