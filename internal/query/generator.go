package query

import (
	"fmt"
	"strings"

	"github.com/ppiankov/riskprobe/internal/model"
)

// Category groups queries by what they try to establish
type Category string

const (
	CategoryIdentity   Category = "identity"
	CategoryLegitimacy Category = "legitimacy"
	CategoryFraud      Category = "fraud"
	CategoryRegulatory Category = "regulatory"
	CategoryContextual Category = "contextual"
	CategoryFallback   Category = "fallback"
)

// Query is one search to issue, in priority order
type Query struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// Patterns are query templates for one industry. %s is the quoted subject name.
type Patterns struct {
	Legitimacy []string
	Fraud      []string
	Regulatory []string
}

// DefaultIndustry is used when the subject's industry is unknown
const DefaultIndustry = "default"

// Industries is the industry-keyed pattern table
var Industries = map[string]Patterns{
	DefaultIndustry: {
		Legitimacy: []string{"%s company registration", "%s official website about"},
		Fraud:      []string{"%s scam", "%s fraud complaints"},
		Regulatory: []string{"%s regulator warning", "%s lawsuit"},
	},
	"crypto": {
		Legitimacy: []string{"%s audit smart contract", "%s team founders"},
		Fraud:      []string{"%s rug pull scam", "%s cannot withdraw"},
		Regulatory: []string{"%s sec enforcement action", "%s investor alert"},
	},
	"finance": {
		Legitimacy: []string{"%s authorised regulated firm", "%s annual report"},
		Fraud:      []string{"%s investment scam", "%s ponzi"},
		Regulatory: []string{"%s fca warning list", "%s fined by regulator"},
	},
	"ecommerce": {
		Legitimacy: []string{"%s company registration", "%s customer service reviews"},
		Fraud:      []string{"%s fake store scam", "%s never received order"},
		Regulatory: []string{"%s consumer alert", "%s ftc complaint"},
	},
	"healthcare": {
		Legitimacy: []string{"%s licensed accredited", "%s clinical certification"},
		Fraud:      []string{"%s medical fraud", "%s fake products"},
		Regulatory: []string{"%s fda warning letter", "%s license revoked"},
	},
	"technology": {
		Legitimacy: []string{"%s iso certified soc 2", "%s funding series"},
		Fraud:      []string{"%s scam", "%s data breach phishing"},
		Regulatory: []string{"%s enforcement action", "%s privacy regulator fine"},
	},
}

// industryAliases maps free-form industry text to a pattern table key
var industryAliases = []struct {
	key   string
	words []string
}{
	{"crypto", []string{"crypto", "blockchain", "defi", "token", "web3", "nft"}},
	{"finance", []string{"bank", "finance", "financial", "fintech", "invest", "insurance", "lending", "forex", "trading"}},
	{"ecommerce", []string{"ecommerce", "e-commerce", "retail", "shop", "store", "marketplace"}},
	{"healthcare", []string{"health", "medical", "pharma", "clinic", "wellness"}},
	{"technology", []string{"software", "technology", "tech", "saas", "cloud", "cybersecurity"}},
}

// Contextual templates conditioned on triage
var (
	victimQueries      = []string{"%s victims lost money", "%s complaints reddit", "%s withdrawal problems"}
	recognitionQueries = []string{"%s award recognition", "%s partnership announcement", "%s customers include"}
)

// IndustryKey resolves free-form industry text to a pattern table key
func IndustryKey(industry string) string {
	lower := strings.ToLower(strings.TrimSpace(industry))
	if lower == "" {
		return DefaultIndustry
	}
	if _, ok := Industries[lower]; ok {
		return lower
	}
	for _, alias := range industryAliases {
		for _, w := range alias.words {
			if strings.Contains(lower, w) {
				return alias.key
			}
		}
	}
	return DefaultIndustry
}

// Generator builds prioritized query lists
type Generator struct {
	industries map[string]Patterns
}

// NewGenerator creates a generator over the built-in pattern table
func NewGenerator() *Generator {
	return &Generator{industries: Industries}
}

// block is one family of query templates
type block struct {
	name     string
	category Category
	patterns []string
}

// Block names, also the targets of triage focus matching
const (
	blockLegitimacy  = "legitimacy"
	blockFraud       = "fraud"
	blockRegulatory  = "regulatory"
	blockVictim      = "victim"
	blockRecognition = "recognition"
)

// focusKeywords map free-form triage focus text to a block. Checked in order, first match wins.
var focusKeywords = []struct {
	block string
	words []string
}{
	{blockVictim, []string{"victim", "complaint", "withdraw", "lost money", "review"}},
	{blockRecognition, []string{"award", "recognition", "partner", "reputation", "customer"}},
	{blockRegulatory, []string{"regulat", "warning", "licen", "sanction", "enforcement", "lawsuit", "legal", "compliance"}},
	{blockFraud, []string{"fraud", "scam", "ponzi", "rug pull"}},
	{blockLegitimacy, []string{"registration", "registry", "registered", "legitim", "incorporat", "audit", "founder", "team", "business"}},
}

// Generate returns the ordered, de-duplicated query list for a subject.
// The identity query comes first. The template blocks are ordered by the
// triage risk level, then any block named by focus (triage scraping priority
// and investigation focus) moves to the front. Blocks are interleaved one
// template at a time so a small budget still reaches each of the leading blocks.
func (g *Generator) Generate(profile model.SubjectProfile, level model.RiskLevel, focus ...string) []Query {
	name := quote(profile.Name)
	patterns, ok := g.industries[IndustryKey(profile.Industry)]
	if !ok {
		patterns = g.industries[DefaultIndustry]
	}

	var queries []Query

	// 1. Base identity
	identity := name
	if region := strings.TrimSpace(profile.Region); region != "" {
		identity += " " + region
	}
	queries = append(queries, Query{Text: identity, Category: CategoryIdentity})

	// 2. Order the blocks
	blocks := map[string]block{
		blockLegitimacy:  {blockLegitimacy, CategoryLegitimacy, patterns.Legitimacy},
		blockFraud:       {blockFraud, CategoryFraud, patterns.Fraud},
		blockRegulatory:  {blockRegulatory, CategoryRegulatory, patterns.Regulatory},
		blockVictim:      {blockVictim, CategoryContextual, victimQueries},
		blockRecognition: {blockRecognition, CategoryContextual, recognitionQueries},
	}
	var ordered []block
	for _, key := range prioritize(blockOrder(level), focus) {
		ordered = append(ordered, blocks[key])
	}

	// 3. Interleave
	for i := 0; ; i++ {
		added := false
		for _, b := range ordered {
			if i < len(b.patterns) {
				queries = append(queries, Query{Text: fmt.Sprintf(b.patterns[i], name), Category: b.category})
				added = true
			}
		}
		if !added {
			break
		}
	}

	return dedupe(queries)
}

// blockOrder is the default block priority for a risk level. Victim queries lead
// the contextual blocks for risky subjects and recognition queries for safe ones.
func blockOrder(level model.RiskLevel) []string {
	switch level {
	case model.RiskHigh, model.RiskCritical:
		return []string{blockFraud, blockRegulatory, blockVictim, blockLegitimacy, blockRecognition}
	case model.RiskLow:
		return []string{blockLegitimacy, blockFraud, blockRecognition, blockRegulatory, blockVictim}
	default:
		return []string{blockLegitimacy, blockFraud, blockRegulatory, blockVictim, blockRecognition}
	}
}

// prioritize moves the blocks named by focus to the front, in focus order
func prioritize(order []string, focus []string) []string {
	var front []string
	picked := make(map[string]bool)
	for _, f := range focus {
		name := focusBlock(f)
		if name == "" || picked[name] {
			continue
		}
		picked[name] = true
		front = append(front, name)
	}

	out := front
	for _, name := range order {
		if !picked[name] {
			out = append(out, name)
		}
	}
	return out
}

// focusBlock resolves one triage focus entry to a query block name, or "" when nothing matches
func focusBlock(focus string) string {
	lower := strings.ToLower(focus)
	for _, fk := range focusKeywords {
		for _, w := range fk.words {
			if strings.Contains(lower, w) {
				return fk.block
			}
		}
	}
	return ""
}

// FallbackQueries returns the canonical checks run through the fallback connector
func FallbackQueries(name string) []Query {
	n := quote(name)
	return []Query{
		{Text: n + " scam complaints", Category: CategoryFallback},
		{Text: n + " official registration", Category: CategoryFallback},
	}
}

// Normalize lowercases and collapses whitespace for duplicate detection
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Texts returns the query strings in order
func Texts(queries []Query) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Text
	}
	return out
}

func dedupe(queries []Query) []Query {
	seen := make(map[string]bool, len(queries))
	out := queries[:0]
	for _, q := range queries {
		key := Normalize(q.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
	}
	return out
}

func quote(name string) string {
	return `"` + strings.Join(strings.Fields(name), " ") + `"`
}
