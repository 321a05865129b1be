package queryanalysis

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"What is the effective date of this agreement?", IntentDefinition},
		{"Under what conditions can the contract be renewed?", IntentConditions},
		{"Can the licensee distribute modified versions?", IntentPermission},
		{"What obligations does the contributor have?", IntentObligation},
		{"What happens if a party breaches the confidentiality clause?", IntentConsequence},
		{"How does the dispute resolution process work?", IntentProcedural},
		{"Termination clause details", IntentGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestAnalyzeExtractsTermsAndPhrases(t *testing.T) {
	a := Analyze("What is the notice period for termination of the agreement?")

	for _, term := range a.KeyTerms {
		if stopWords[term] {
			t.Errorf("key terms contain stop word %q", term)
		}
	}
	if !contains(a.KeyTerms, "termination") {
		t.Errorf("key terms %v missing %q", a.KeyTerms, "termination")
	}
	if !contains(a.Phrases, "notice period") {
		t.Errorf("phrases %v missing %q", a.Phrases, "notice period")
	}
	if a.Intent != IntentDefinition {
		t.Errorf("Intent = %q, want %q", a.Intent, IntentDefinition)
	}
}

func TestExpandAddsSynonymsAndGapTerms(t *testing.T) {
	a := Analyze("How can the licensee terminate the license?")
	expanded := Expand(a, []string{"master", "services"})

	if !strings.Contains(expanded, "terminate") {
		t.Errorf("expansion %q lost the original term", expanded)
	}
	// "terminate" expands to its first two synonyms.
	if !strings.Contains(expanded, "end") || !strings.Contains(expanded, "cancel") {
		t.Errorf("expansion %q missing terminate synonyms", expanded)
	}
	if !strings.Contains(expanded, "master") || !strings.Contains(expanded, "services") {
		t.Errorf("expansion %q missing gap terms", expanded)
	}
}

func TestExpandIsDeterministic(t *testing.T) {
	a := Analyze("What are the payment obligations under the agreement?")
	first := Expand(a, []string{"amendment"})
	for i := 0; i < 10; i++ {
		if got := Expand(a, []string{"amendment"}); got != first {
			t.Fatalf("Expand() varies across calls: %q vs %q", got, first)
		}
	}
}

func TestExpandDeduplicates(t *testing.T) {
	a := Analyze("termination termination termination")
	expanded := Expand(a, []string{"termination"})
	if n := strings.Count(expanded, "termination"); n != 1 {
		t.Errorf("expansion repeats %q %d times: %q", "termination", n, expanded)
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
