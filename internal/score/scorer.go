package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/riskprobe/internal/extract"
	"github.com/ppiankov/riskprobe/internal/model"
)

// Scoring constants
const (
	// MaxTierBonus caps the legitimacy bonus from authoritative atoms
	MaxTierBonus     = 30
	registryBonus    = 15
	regulatorBonus   = 10
	authoritativeMul = 1.5 // Regulatory warnings from tier 0-1 atoms

	negativeWeight = 12
	positiveWeight = 6

	pointsPerAtom    = 4
	categoryPointCap = 20

	baseConfidence = 25
	maxConfidence  = 95

	// RejectConfidence is the confidence at which a high-risk subject is rejected outright
	RejectConfidence = 70
)

// Assessment is the fused score for one subject
type Assessment struct {
	FraudScore        int
	RiskLevel         model.RiskLevel
	Confidence        int
	CategoryScores    model.CategoryScores
	Breakdown         model.EvidenceBreakdown
	RecommendedAction model.Action
	EvidenceQuality   model.EvidenceQuality
	QualityTally      int
	Signals           []model.Signal
}

// Apply copies the assessment onto a result
func (a Assessment) Apply(r *model.AnalysisResult) {
	r.FraudScore = a.FraudScore
	r.RiskLevel = a.RiskLevel
	r.Confidence = a.Confidence
	r.CategoryScores = a.CategoryScores
	r.EvidenceBreakdown = a.Breakdown
	r.RecommendedAction = a.RecommendedAction
	r.EvidenceQuality = a.EvidenceQuality
	r.Signals = a.Signals
}

// Scorer fuses evidence into category scores and a final fraud score
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// atomScan caches the keyword matches for one atom
type atomScan struct {
	atom       model.EvidenceAtom
	legitimacy extract.Match
	fraud      extract.Match
	regulatory extract.Match
	negative   extract.Match
	positive   extract.Match
}

// adverse atoms speak against the subject and never count as legitimacy evidence
func (a atomScan) adverse() bool {
	return a.fraud.Count() > 0 || a.regulatory.Count() > 0
}

func (a atomScan) hasSignal() bool {
	return a.adverse() ||
		a.legitimacy.CountAtLeast(extract.TrivialWeight) > 0 ||
		a.negative.Count() > 0 ||
		a.positive.Count() > 0
}

// Calculate scores a subject from its description and validated evidence atoms
func (s *Scorer) Calculate(subject model.SubjectProfile, atoms []model.EvidenceAtom) Assessment {
	scans := scanAtoms(atoms)
	description := subject.Description

	// 1. Legitimacy (0-100)
	legitimacy, legitSignal := s.calculateLegitimacy(description, scans)

	// 2. Fraud indicators (0-100)
	fraud, fraudSignal := s.calculateFraud(description, scans)

	// 3. Regulatory warnings (0-100)
	regulatory, regSignal := s.calculateRegulatory(description, scans)

	// 4. Public sentiment (0-100, higher is more negative)
	sentiment, sentimentSignal := s.calculateSentiment(scans)

	// 5. Web research impact (0-100)
	impact, impactSignal := s.calculateImpact(scans)

	// 6. Fuse
	raw := 0.5*fraud + 0.25*regulatory + 0.25*(100-legitimacy) + 0.10*sentiment
	fraudScore := roundClamp(raw)
	level := model.RiskLevelForScore(fraudScore)

	// 7. Evidence quality and confidence
	tally, quality, qualitySignal := s.calculateQuality(scans, len(atoms))
	confidence := baseConfidence + tally
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	signals := []model.Signal{legitSignal, fraudSignal, regSignal, sentimentSignal, impactSignal, qualitySignal}
	signals = append(signals, model.Signal{
		Type:        model.SignalFraudScore,
		Severity:    severityForLevel(level),
		Description: fmt.Sprintf("Fraud score %d (%s risk)", fraudScore, level),
		Formula:     "clamp(0.5*F + 0.25*R + 0.25*(100-L) + 0.10*S, 0, 100)",
		Inputs: map[string]float64{
			"F":   fraud,
			"R":   regulatory,
			"L":   legitimacy,
			"S":   sentiment,
			"raw": raw,
		},
	})

	return Assessment{
		FraudScore: fraudScore,
		RiskLevel:  level,
		Confidence: confidence,
		CategoryScores: model.CategoryScores{
			FraudIndicators:    roundClamp(fraud),
			RegulatoryWarnings: roundClamp(regulatory),
			LegitimacyEvidence: roundClamp(legitimacy),
			PublicSentiment:    roundClamp(sentiment),
			WebResearchImpact:  roundClamp(impact),
		},
		Breakdown:         Breakdown(atoms),
		RecommendedAction: Recommend(level, confidence),
		EvidenceQuality:   quality,
		QualityTally:      tally,
		Signals:           signals,
	}
}

func scanAtoms(atoms []model.EvidenceAtom) []atomScan {
	scans := make([]atomScan, 0, len(atoms))
	for _, atom := range atoms {
		// Coverage atoms record that a search happened; their text is not evidence
		if atom.Field == model.FieldSearchCoverage {
			continue
		}
		scans = append(scans, scanAtom(atom))
	}
	return scans
}

func scanAtom(atom model.EvidenceAtom) atomScan {
	return atomScan{
		atom:       atom,
		legitimacy: extract.Legitimacy.Scan(atom.Value),
		fraud:      extract.Fraud.Scan(atom.Value),
		regulatory: extract.RegulatoryWarnings.Scan(atom.Value),
		negative:   extract.NegativeSentiment.Scan(atom.Value),
		positive:   extract.PositiveSentiment.Scan(atom.Value),
	}
}

// calculateLegitimacy sums weighted legitimacy terms over the description and non-adverse atoms,
// normalizes the capped raw sum, then adds the capped tier bonus
func (s *Scorer) calculateLegitimacy(description string, scans []atomScan) (float64, model.Signal) {
	raw := extract.Legitimacy.Scan(description).Weight
	registry, regulator := 0, 0

	for _, sc := range scans {
		if sc.adverse() {
			continue
		}
		raw += sc.legitimacy.Weight
		switch sc.atom.Tier {
		case model.TierRegistry:
			registry++
		case model.TierRegulator:
			regulator++
		}
	}

	raw = math.Min(raw, 100)
	normalized := NormalizeLegitimacy(raw)
	bonus := TierBonus(registry, regulator)
	score := clamp(normalized + bonus)

	severity := model.SeverityInfo
	if score < 25 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalLegitimacy,
		Severity:    severity,
		Description: fmt.Sprintf("Legitimacy evidence %.0f/100 (%d registry, %d regulator atoms)", score, registry, regulator),
		Formula:     "clamp(normalize(min(sum(weights), 100)) + min(15*tier0 + 10*tier1, 30), 0, 100)",
		Inputs: map[string]float64{
			"raw":        raw,
			"normalized": normalized,
			"tier0":      float64(registry),
			"tier1":      float64(regulator),
			"bonus":      bonus,
		},
	}
}

// NormalizeLegitimacy maps a raw legitimacy sum (0-100) onto the piecewise scale
func NormalizeLegitimacy(x float64) float64 {
	switch {
	case x <= 20:
		return x * 1.25
	case x <= 50:
		return 25 + 0.83*(x-20)
	case x <= 80:
		return 50 + 0.83*(x-50)
	default:
		return 75 + 0.625*(x-80)
	}
}

// TierBonus returns the legitimacy bonus for authoritative atoms, never above MaxTierBonus
func TierBonus(registryAtoms, regulatorAtoms int) float64 {
	bonus := registryBonus*registryAtoms + regulatorBonus*regulatorAtoms
	if bonus > MaxTierBonus {
		bonus = MaxTierBonus
	}
	return float64(bonus)
}

func (s *Scorer) calculateFraud(description string, scans []atomScan) (float64, model.Signal) {
	raw := extract.Fraud.Scan(description).Weight
	hits := 0
	for _, sc := range scans {
		raw += sc.fraud.Weight
		hits += sc.fraud.Count()
	}
	score := clamp(raw)

	return score, model.Signal{
		Type:        model.SignalFraudIndicators,
		Severity:    severityForScore(score),
		Description: fmt.Sprintf("Fraud indicators %.0f/100 (%d hits in evidence)", score, hits),
		Formula:     "clamp(sum(fraud term weights), 0, 100)",
		Inputs: map[string]float64{
			"raw":  raw,
			"hits": float64(hits),
		},
	}
}

func (s *Scorer) calculateRegulatory(description string, scans []atomScan) (float64, model.Signal) {
	raw := extract.RegulatoryWarnings.Scan(description).Weight
	authoritative := 0
	for _, sc := range scans {
		weight := sc.regulatory.Weight
		if weight > 0 && sc.atom.Tier <= model.TierRegulator {
			weight *= authoritativeMul
			authoritative++
		}
		raw += weight
	}
	score := clamp(raw)

	return score, model.Signal{
		Type:        model.SignalRegulatoryWarnings,
		Severity:    severityForScore(score),
		Description: fmt.Sprintf("Regulatory warnings %.0f/100 (%d from registries or regulators)", score, authoritative),
		Formula:     "clamp(sum(warning weights * (1.5 if tier <= 1)), 0, 100)",
		Inputs: map[string]float64{
			"raw":           raw,
			"authoritative": float64(authoritative),
		},
	}
}

// calculateSentiment measures negativity in news and social atoms
func (s *Scorer) calculateSentiment(scans []atomScan) (float64, model.Signal) {
	negative, positive := 0, 0
	for _, sc := range scans {
		if sc.atom.Tier < model.TierNews {
			continue
		}
		negative += sc.negative.Count()
		positive += sc.positive.Count()
	}
	score := clamp(float64(negativeWeight*negative - positiveWeight*positive))

	return score, model.Signal{
		Type:        model.SignalPublicSentiment,
		Severity:    severityForScore(score),
		Description: fmt.Sprintf("Public sentiment negativity %.0f/100 (%d negative, %d positive)", score, negative, positive),
		Formula:     "clamp(12*negative - 6*positive, 0, 100)",
		Inputs: map[string]float64{
			"negative": float64(negative),
			"positive": float64(positive),
		},
	}
}

// calculateImpact is the share of evidence atoms that carried any signal
func (s *Scorer) calculateImpact(scans []atomScan) (float64, model.Signal) {
	withSignal := 0
	for _, sc := range scans {
		if sc.hasSignal() {
			withSignal++
		}
	}

	var score float64
	if len(scans) > 0 {
		score = 100 * float64(withSignal) / float64(len(scans))
	}

	severity := model.SeverityInfo
	if len(scans) == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalWebResearchImpact,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d evidence atoms carried a signal", withSignal, len(scans)),
		Formula:     "100 * atoms_with_signal / atoms",
		Inputs: map[string]float64{
			"atoms":       float64(len(scans)),
			"with_signal": float64(withSignal),
		},
	}
}

// calculateQuality tallies per-category contribution points, each category capped at 20.
// Coverage counts every atom, including searches that came back empty.
func (s *Scorer) calculateQuality(scans []atomScan, coverage int) (int, model.EvidenceQuality, model.Signal) {
	var fraud, regulatory, legitimacy, sentiment int
	for _, sc := range scans {
		if sc.fraud.Count() > 0 {
			fraud++
		}
		if sc.regulatory.Count() > 0 || sc.atom.Tier <= model.TierRegulator {
			regulatory++
		}
		if !sc.adverse() && (sc.legitimacy.CountAtLeast(extract.TrivialWeight) > 0 || sc.atom.Tier == model.TierRegistry) {
			legitimacy++
		}
		if sc.atom.Tier >= model.TierNews && (sc.negative.Count() > 0 || sc.positive.Count() > 0) {
			sentiment++
		}
	}

	points := map[string]float64{
		"fraud":      float64(categoryPoints(fraud)),
		"regulatory": float64(categoryPoints(regulatory)),
		"legitimacy": float64(categoryPoints(legitimacy)),
		"sentiment":  float64(categoryPoints(sentiment)),
		"coverage":   float64(categoryPoints(coverage)),
	}
	tally := 0
	for _, p := range points {
		tally += int(p)
	}
	quality := QualityForTally(tally)

	severity := model.SeverityInfo
	if quality == model.QualityMinimal || quality == model.QualityLimited {
		severity = model.SeverityWarning
	}

	return tally, quality, model.Signal{
		Type:        model.SignalEvidenceQuality,
		Severity:    severity,
		Description: fmt.Sprintf("Evidence quality %s (tally %d/100)", quality, tally),
		Formula:     "sum(min(4 * relevant_atoms, 20)) over fraud, regulatory, legitimacy, sentiment, coverage",
		Inputs:      points,
	}
}

func categoryPoints(atoms int) int {
	p := pointsPerAtom * atoms
	if p > categoryPointCap {
		return categoryPointCap
	}
	return p
}

// QualityForTally buckets an evidence-quality tally
func QualityForTally(tally int) model.EvidenceQuality {
	switch {
	case tally >= 60:
		return model.QualityComprehensive
	case tally >= 40:
		return model.QualityGood
	case tally >= 20:
		return model.QualityLimited
	default:
		return model.QualityMinimal
	}
}

// Recommend maps risk level and confidence to an action
func Recommend(level model.RiskLevel, confidence int) model.Action {
	switch level {
	case model.RiskCritical:
		return model.ActionReject
	case model.RiskHigh:
		if confidence >= RejectConfidence {
			return model.ActionReject
		}
		return model.ActionManualReview
	case model.RiskMedium:
		return model.ActionInvestigate
	default:
		return model.ActionApprove
	}
}

// Breakdown counts atoms by authority tier
func Breakdown(atoms []model.EvidenceAtom) model.EvidenceBreakdown {
	b := model.EvidenceBreakdown{Total: len(atoms)}
	sources := make(map[string]bool)
	for _, a := range atoms {
		sources[a.Source] = true
		switch a.Tier {
		case model.TierRegistry:
			b.Registry++
		case model.TierRegulator:
			b.Regulator++
		case model.TierNews:
			b.News++
		default:
			b.Social++
		}
		if a.Verification == model.VerificationUnverified {
			b.Unverified++
		}
		addFindings(&b.Findings, a)
	}
	b.Sources = len(sources)
	return b
}

// addFindings files an atom under every category its text matches, using the same
// rules as scoring: adverse atoms never count as legitimacy, trivial markers are ignored
func addFindings(f *model.CategoryFindings, atom model.EvidenceAtom) {
	finding := func(terms []string) model.Finding {
		return model.Finding{Terms: terms, Source: atom.Source, URL: atom.URL, Query: atom.Query, Tier: atom.Tier}
	}

	if atom.Field == model.FieldSearchCoverage {
		f.Neutral = append(f.Neutral, finding(nil))
		return
	}

	sc := scanAtom(atom)
	placed := false
	if sc.fraud.Count() > 0 {
		f.Fraud = append(f.Fraud, finding(sc.fraud.Terms))
		placed = true
	}
	if sc.regulatory.Count() > 0 {
		f.Regulatory = append(f.Regulatory, finding(sc.regulatory.Terms))
		placed = true
	}
	if !sc.adverse() {
		if terms := significantTerms(sc.legitimacy); len(terms) > 0 {
			f.Legitimacy = append(f.Legitimacy, finding(terms))
			placed = true
		}
	}
	if sc.negative.Count()+sc.positive.Count() > 0 {
		terms := append(append([]string{}, sc.negative.Terms...), sc.positive.Terms...)
		f.Sentiment = append(f.Sentiment, finding(terms))
		placed = true
	}
	if !placed {
		f.Neutral = append(f.Neutral, finding(nil))
	}
}

// significantTerms drops trivial legitimacy markers
func significantTerms(m extract.Match) []string {
	var terms []string
	for i, term := range m.Terms {
		if m.Weights[i] >= extract.TrivialWeight {
			terms = append(terms, term)
		}
	}
	return terms
}

func severityForScore(score float64) model.SignalSeverity {
	switch {
	case score >= 50:
		return model.SeverityCritical
	case score > 0:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func severityForLevel(level model.RiskLevel) model.SignalSeverity {
	switch level {
	case model.RiskCritical, model.RiskHigh:
		return model.SeverityCritical
	case model.RiskMedium:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func roundClamp(v float64) int {
	return int(math.Round(clamp(v)))
}
