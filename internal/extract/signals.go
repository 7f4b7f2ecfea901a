package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Term is a keyword with a scoring weight
type Term struct {
	Text   string
	Weight float64
}

// TermSet is a named keyword table
type TermSet struct {
	Name  string
	Terms []Term
}

// Legitimacy indicators. Strong 15-20, medium 10-14, basic 5-9, trivial 3.
var Legitimacy = TermSet{
	Name: "legitimacy",
	Terms: []Term{
		{"registered with", 18},
		{"licensed by", 18},
		{"regulated by", 18},
		{"authorised by", 18},
		{"authorized by", 18},
		{"iso certified", 17},
		{"iso 27001", 16},
		{"publicly traded", 20},
		{"listed on", 15},
		{"audited by", 16},
		{"soc 2", 15},
		{"government contract", 15},

		{"founded in", 12},
		{"headquartered in", 11},
		{"annual report", 12},
		{"award", 10},
		{"partnership with", 12},
		{"partnered with", 12},
		{"series a", 11},
		{"series b", 11},
		{"customers include", 12},
		{"accredited", 13},
		{"compliance", 10},

		{"official website", 6},
		{"customer support", 5},
		{"privacy policy", 5},
		{"terms of service", 5},
		{"ceo", 6},
		{"leadership team", 7},
		{"office", 5},
		{"employees", 7},

		{"company", 3},
		{"services", 3},
		{"products", 3},
	},
}

// Fraud indicators found in descriptions or search results
var Fraud = TermSet{
	Name: "fraud",
	Terms: []Term{
		{"ponzi", 25},
		{"pyramid scheme", 25},
		{"rug pull", 25},
		{"exit scam", 25},
		{"scam", 20},
		{"fraud", 20},
		{"guaranteed returns", 20},
		{"guaranteed return", 20},
		{"stolen funds", 20},
		{"money laundering", 20},
		{"cannot withdraw", 15},
		{"withdrawal problems", 15},
		{"unlicensed", 15},
		{"phishing", 15},
		{"victims", 12},
		{"fake", 12},
		{"misleading", 10},
		{"lawsuit", 10},
		{"complaints", 8},
	},
}

// RegulatoryWarnings are explicit regulator warning or sanction phrases
var RegulatoryWarnings = TermSet{
	Name: "regulatory",
	Terms: []Term{
		{"cease and desist", 30},
		{"warning list", 30},
		{"investor alert", 30},
		{"consumer alert", 25},
		{"unauthorised firm", 30},
		{"unauthorized firm", 30},
		{"enforcement action", 25},
		{"license revoked", 25},
		{"licence revoked", 25},
		{"sanctioned", 25},
		{"fined by", 20},
		{"blacklist", 20},
		{"regulator warning", 30},
	},
}

// RedFlags are immediate triage concerns in a subject description
var RedFlags = TermSet{
	Name: "red_flag",
	Terms: []Term{
		{"guaranteed returns", 1},
		{"guaranteed return", 1},
		{"risk-free", 1},
		{"no risk", 1},
		{"double your money", 1},
		{"get rich", 1},
		{"100x", 1},
		{"ponzi", 1},
		{"pyramid", 1},
		{"anonymous team", 1},
		{"act now", 1},
		{"limited time", 1},
	},
}

// Ambiguous are concerns that need investigation but are not red flags
var Ambiguous = TermSet{
	Name: "ambiguous",
	Terms: []Term{
		{"crypto", 1},
		{"token", 1},
		{"high yield", 1},
		{"investment", 1},
		{"trading", 1},
		{"forex", 1},
		{"presale", 1},
		{"airdrop", 1},
		{"referral bonus", 1},
		{"passive income", 1},
		{"offshore", 1},
	},
}

// TriageLegitimacy are quick legitimacy cues in a subject description
var TriageLegitimacy = TermSet{
	Name: "triage_legitimacy",
	Terms: []Term{
		{"registered", 1},
		{"licensed", 1},
		{"regulated", 1},
		{"audited", 1},
		{"iso certified", 1},
		{"founded in", 1},
		{"headquartered", 1},
		{"publicly traded", 1},
		{"compliance", 1},
	},
}

// NegativeSentiment terms in public commentary
var NegativeSentiment = TermSet{
	Name: "negative_sentiment",
	Terms: []Term{
		{"scam", 1},
		{"avoid", 1},
		{"beware", 1},
		{"worst", 1},
		{"terrible", 1},
		{"rip off", 1},
		{"ripoff", 1},
		{"lost money", 1},
		{"lost my money", 1},
		{"complaint", 1},
		{"stolen", 1},
		{"fake", 1},
	},
}

// PositiveSentiment terms in public commentary
var PositiveSentiment = TermSet{
	Name: "positive_sentiment",
	Terms: []Term{
		{"recommend", 1},
		{"excellent", 1},
		{"trusted", 1},
		{"reliable", 1},
		{"legit", 1},
		{"great service", 1},
		{"satisfied", 1},
	},
}

// Match is the result of scanning one document against a term set
type Match struct {
	Terms   []string
	Weights []float64
	Weight  float64
}

// Count returns the number of distinct matched terms
func (m Match) Count() int {
	return len(m.Terms)
}

// Scan matches text against the set. Each term counts at most once per document.
// Longer terms shadow their own substrings ("guaranteed returns" over "guaranteed return").
func (s TermSet) Scan(text string) Match {
	lower := strings.ToLower(text)
	terms := make([]Term, len(s.Terms))
	copy(terms, s.Terms)
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i].Text) > len(terms[j].Text) })

	var m Match
	var matched []string
	for _, term := range terms {
		if !containsTerm(lower, term.Text) {
			continue
		}
		shadowed := false
		for _, prev := range matched {
			if strings.Contains(prev, term.Text) {
				shadowed = true
				break
			}
		}
		if shadowed {
			continue
		}
		matched = append(matched, term.Text)
		m.Terms = append(m.Terms, term.Text)
		m.Weights = append(m.Weights, term.Weight)
		m.Weight += term.Weight
	}
	return m
}

// CountAtLeast returns the number of matched terms whose weight is at least min
func (m Match) CountAtLeast(min float64) int {
	n := 0
	for _, w := range m.Weights {
		if w >= min {
			n++
		}
	}
	return n
}

// Contains reports whether any term of the set appears in text
func (s TermSet) Contains(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range s.Terms {
		if containsTerm(lower, term.Text) {
			return true
		}
	}
	return false
}

// containsTerm finds term in text on word boundaries
func containsTerm(text, term string) bool {
	offset := 0
	for {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		offset = start + 1
		if offset >= len(text) {
			return false
		}
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, size := utf8.DecodeRuneInString(text[i:])
	// Allow simple plurals ("scams", "complaints")
	if r == 's' {
		if i+size >= len(text) {
			return true
		}
		next, _ := utf8.DecodeRuneInString(text[i+size:])
		return !isWordRune(next)
	}
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// SourceSignals are the per-source counts the collector uses for early termination
type SourceSignals struct {
	FraudHits        int
	LegitimacyHits   int
	RegulatorWarning bool
}

// Add accumulates other into s
func (s *SourceSignals) Add(other SourceSignals) {
	s.FraudHits += other.FraudHits
	s.LegitimacyHits += other.LegitimacyHits
	s.RegulatorWarning = s.RegulatorWarning || other.RegulatorWarning
}

// TrivialWeight is the cutoff below which legitimacy markers do not count as signals
const TrivialWeight = 5

// SignalsFor scans each document and sums distinct term hits per document.
// Trivial legitimacy markers are ignored.
func SignalsFor(docs ...string) SourceSignals {
	var s SourceSignals
	for _, doc := range docs {
		s.FraudHits += Fraud.Scan(doc).Count()
		s.LegitimacyHits += Legitimacy.Scan(doc).CountAtLeast(TrivialWeight)
		if RegulatoryWarnings.Contains(doc) {
			s.RegulatorWarning = true
		}
	}
	return s
}
