package analyzer

import (
	"regexp"
	"strings"
	"time"

	"LegalMind/internal/rag/schema"
)

// datedChunk is a chunk with an extractable effective or amendment date.
type datedChunk struct {
	chunkID    string
	documentID string
	date       time.Time
	subjects   map[string]bool
}

var datePatterns = []*regexp.Regexp{
	// "January 2, 2006" / "Jan 2, 2006"
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+\d{1,2},\s+\d{4}\b`),
	// "2006-01-02"
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	// "02/01/2006"
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
}

var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// effectiveMarkers restrict temporal tracking to dates that govern when a
// provision applies, ignoring incidental dates.
var effectiveMarkers = []string{
	"effective",
	"amended",
	"amendment",
	"dated",
	"as of",
	"entered into",
	"supersede",
	"restated",
}

// extractDate returns the governing date of a chunk, if any. Only sentences
// carrying an effective/amendment marker are considered; the latest such date
// wins.
func extractDate(text string) (time.Time, bool) {
	var best time.Time
	found := false
	for _, sentence := range sentenceSplit.Split(text, -1) {
		lower := strings.ToLower(sentence)
		if !hasMarker(lower) {
			continue
		}
		for _, pattern := range datePatterns {
			for _, raw := range pattern.FindAllString(sentence, -1) {
				if t, ok := parseDate(raw); ok && t.After(best) {
					best = t
					found = true
				}
			}
		}
	}
	return best, found
}

func hasMarker(lower string) bool {
	for _, marker := range effectiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.ReplaceAll(raw, ".", "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// temporalFindings orders dated chunks and reports a later-dated chunk
// superseding an earlier one on a shared subject. Supersession is
// informational, not a true conflict.
func temporalFindings(evidence *schema.EvidenceSet) []schema.Contradiction {
	var dated []datedChunk
	for _, sc := range evidence.Chunks() {
		date, ok := extractDate(sc.Chunk.Text)
		if !ok {
			continue
		}
		subjects := make(map[string]bool)
		for _, cl := range extractClaims(sc) {
			subjects[cl.subject] = true
		}
		if subject := findSubject(sc.Chunk.Text); subject != "" {
			subjects[subject] = true
		}
		if len(subjects) == 0 {
			continue
		}
		dated = append(dated, datedChunk{
			chunkID:    sc.Chunk.ID,
			documentID: sc.Chunk.DocumentID,
			date:       date,
			subjects:   subjects,
		})
	}

	var findings []schema.Contradiction
	for i := 0; i < len(dated); i++ {
		for j := i + 1; j < len(dated); j++ {
			earlier, later := dated[i], dated[j]
			if later.date.Before(earlier.date) {
				earlier, later = later, earlier
			}
			if earlier.date.Equal(later.date) {
				continue
			}
			subject := sharedSubject(earlier.subjects, later.subjects)
			if subject == "" {
				continue
			}
			findings = append(findings, schema.Contradiction{
				Type: schema.ContradictionSupersession,
				Description: "provision \"" + subject + "\" dated " +
					later.date.Format("2006-01-02") + " supersedes the version dated " +
					earlier.date.Format("2006-01-02"),
				Severity:       schema.SeverityMinor,
				Confidence:     0.6,
				SourceChunkIDs: []string{earlier.chunkID, later.chunkID},
				Informational:  true,
			})
		}
	}
	return findings
}

func sharedSubject(a, b map[string]bool) string {
	// provisionKeywords order makes the pick deterministic.
	for _, kw := range provisionKeywords {
		if a[kw] && b[kw] {
			return kw
		}
	}
	return ""
}
