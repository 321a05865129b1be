package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"LegalMind/internal/rag/schema"
)

// claim is one numeric statement extracted from a chunk, e.g. "thirty (30)
// days notice" under a termination provision.
type claim struct {
	chunkID    string
	documentID string
	subject    string  // provision keyword the number attaches to
	value      float64 // normalized numeric value
	unit       string  // normalized unit
	sentence   string
}

// provisionKeywords name the provisions whose numeric terms are worth
// comparing across documents. The longest match in a sentence wins.
var provisionKeywords = []string{
	"notice period",
	"cure period",
	"payment term",
	"liability cap",
	"termination",
	"notice",
	"payment",
	"liability",
	"warranty",
	"renewal",
	"interest",
	"penalty",
	"indemnification",
	"confidentiality",
}

var numberPattern = regexp.MustCompile(`(?i)(\$\s*[\d,]+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(days?|business days?|months?|years?|percent|%)?`)

var sentenceSplit = regexp.MustCompile(`[.;]\s+`)

// extractClaims pulls comparable numeric claims out of a chunk's text.
func extractClaims(sc *schema.ScoredChunk) []claim {
	var claims []claim
	for _, sentence := range sentenceSplit.Split(sc.Chunk.Text, -1) {
		subject := findSubject(sentence)
		if subject == "" {
			continue
		}
		for _, m := range numberPattern.FindAllStringSubmatch(sentence, -1) {
			value, unit, ok := normalizeNumber(m[1], m[2])
			if !ok {
				continue
			}
			claims = append(claims, claim{
				chunkID:    sc.Chunk.ID,
				documentID: sc.Chunk.DocumentID,
				subject:    subject,
				value:      value,
				unit:       unit,
				sentence:   strings.TrimSpace(sentence),
			})
		}
	}
	return claims
}

func findSubject(sentence string) string {
	lower := strings.ToLower(sentence)
	for _, kw := range provisionKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

func normalizeNumber(raw, unit string) (float64, string, bool) {
	raw = strings.TrimSpace(raw)
	unit = strings.ToLower(strings.TrimSpace(unit))

	if strings.HasPrefix(raw, "$") {
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, "", false
		}
		return v, "usd", true
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "", false
	}
	switch unit {
	case "day", "days", "business day", "business days":
		return v, "days", true
	case "month", "months":
		return v, "months", true
	case "year", "years":
		return v, "years", true
	case "percent", "%":
		return v, "percent", true
	case "":
		// Bare numbers ("Section 12") are too noisy to compare.
		return 0, "", false
	default:
		return 0, "", false
	}
}
