package queryanalysis

import (
	"regexp"
	"sort"
	"strings"
)

// Question intents recognized by Classify.
const (
	IntentDefinition  = "definition"
	IntentConditions  = "conditions"
	IntentPermission  = "permission"
	IntentObligation  = "obligation"
	IntentConsequence = "consequence"
	IntentProcedural  = "procedural"
	IntentGeneral     = "general"
)

// conceptSynonyms expands legal and contractual vocabulary so a reformulated
// query can reach passages that phrase the same provision differently.
var conceptSynonyms = map[string][]string{
	"accept":         {"agree", "consent", "approve", "acknowledge"},
	"acceptance":     {"agreement", "consent", "approval"},
	"responsibility": {"obligation", "duty", "liability", "accountability"},
	"obligations":    {"duties", "responsibilities", "commitments", "requirements"},
	"rights":         {"privileges", "entitlements", "permissions", "authorities"},
	"license":        {"permit", "authorization", "permission", "grant"},
	"distribute":     {"provide", "share", "disseminate", "deliver"},
	"modification":   {"change", "alteration", "amendment", "revision"},
	"modifications":  {"changes", "alterations", "amendments", "revisions"},
	"sublicense":     {"sublicensing", "sub-license", "relicense"},
	"requirements":   {"conditions", "obligations", "mandates", "criteria"},
	"comply":         {"adhere", "conform", "observe", "satisfy"},
	"compliance":     {"adherence", "conformity", "observance"},
	"cure":           {"fix", "remedy", "correct", "resolve"},
	"terminate":      {"end", "cancel", "discontinue", "cease"},
	"termination":    {"ending", "cancellation", "discontinuation", "cessation", "expiration"},
	"warranty":       {"guarantee", "assurance", "promise"},
	"indemnity":      {"protection", "compensation", "reimbursement"},
	"liability":      {"responsibility", "damages", "compensation", "penalties"},
	"agreement":      {"contract", "document", "terms", "conditions"},
	"parties":        {"entities", "organizations", "participants"},
	"contributor":    {"provider", "supplier", "author"},
	"recipient":      {"receiver", "user", "licensee", "party"},
	"notice":         {"notification", "announcement", "statement"},
	"governing":      {"controlling", "ruling", "applicable"},
	"definition":     {"define", "meaning", "term", "refers to"},
	"deadline":       {"due date", "time limit", "period"},
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"must": true, "this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "how": true, "when": true,
	"it": true, "its": true, "my": true, "your": true, "our": true, "their": true,
}

// compoundPatterns are legal phrases kept whole during term extraction.
var compoundPatterns = []string{
	"source code",
	"governing law",
	"patent rights",
	"copyright notice",
	"termination clause",
	"effective date",
	"force majeure",
	"notice period",
	"commercial advantage",
}

var nonWord = regexp.MustCompile(`[^\w\s-]`)

// Analysis is the decomposition of a user question into searchable parts.
type Analysis struct {
	OriginalQuery string
	Intent        string
	KeyTerms      []string
	Phrases       []string
}

// Analyze extracts intent, key terms and compound phrases from a question.
func Analyze(query string) Analysis {
	lower := strings.ToLower(strings.TrimSpace(query))
	return Analysis{
		OriginalQuery: query,
		Intent:        Classify(lower),
		KeyTerms:      extractKeyTerms(lower),
		Phrases:       extractPhrases(lower),
	}
}

// Classify buckets a question into one intent for reformulation and for the
// analyze-query endpoint.
func Classify(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "what is", "what are", "define", "definition", "meaning"):
		return IntentDefinition
	case containsAny(q, "under what", "conditions", "provided that", "if ", "upon "):
		return IntentConditions
	case containsAny(q, "can ", "may ", "allowed", "permitted", "able to"):
		return IntentPermission
	case containsAny(q, "must", "shall", "required", "obligations", "requirements", "duty"):
		return IntentObligation
	case containsAny(q, "what happens", "consequence", "penalty", "result"):
		return IntentConsequence
	case containsAny(q, "how ", "what activities", "procedure", "process"):
		return IntentProcedural
	default:
		return IntentGeneral
	}
}

// intentKeywords strengthen round-N queries with the vocabulary a matching
// clause would use.
var intentKeywords = map[string][]string{
	IntentDefinition:  {"means", "refers to", "is defined as", "the term"},
	IntentConditions:  {"provided that", "subject to", "conditions", "where"},
	IntentPermission:  {"may", "permitted to", "authorized to", "right to"},
	IntentObligation:  {"shall", "must", "required to", "obligated to"},
	IntentConsequence: {"result in", "lead to", "trigger", "penalty"},
}

// Expand produces a reformulated query for a follow-up retrieval round. Gap
// terms name concepts the current evidence does not cover yet (typically drawn
// from section titles of under-represented documents).
func Expand(a Analysis, gapTerms []string) string {
	var parts []string
	parts = append(parts, a.KeyTerms...)
	for _, term := range a.KeyTerms {
		if syns, ok := conceptSynonyms[term]; ok {
			// Two synonyms keep the query focused; the full list drowns
			// the original terms.
			limit := 2
			if len(syns) < limit {
				limit = len(syns)
			}
			parts = append(parts, syns[:limit]...)
		}
	}
	parts = append(parts, intentKeywords[a.Intent]...)
	parts = append(parts, gapTerms...)
	return strings.Join(dedupe(parts), " ")
}

func extractKeyTerms(query string) []string {
	cleaned := nonWord.ReplaceAllString(query, " ")
	words := strings.Fields(cleaned)

	var terms []string
	for _, w := range words {
		if stopWords[w] || len(w) <= 2 {
			continue
		}
		terms = append(terms, w)
	}
	return dedupe(terms)
}

func extractPhrases(query string) []string {
	var phrases []string
	for _, p := range compoundPatterns {
		if strings.Contains(query, p) {
			phrases = append(phrases, p)
		}
	}
	sort.Strings(phrases)
	return phrases
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
