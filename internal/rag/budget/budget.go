package budget

import (
	"fmt"
	"math"
	"strings"
)

// ErrBudgetConfiguration reports a model/margin combination that leaves no
// usable input tokens.
type ErrBudgetConfiguration struct {
	Model    string
	Computed int
}

func (e *ErrBudgetConfiguration) Error() string {
	return fmt.Sprintf("token budget for model %q computes to %d usable input tokens", e.Model, e.Computed)
}

// contextWindows maps model identifiers to their input context limits.
// Unknown models fall back to the conservative default below.
var contextWindows = map[string]int{
	"gpt-4o":           128000,
	"gpt-4o-mini":      128000,
	"gpt-3.5-turbo":    16385,
	"gemini-1.5-pro":   1048576,
	"gemini-1.5-flash": 1048576,
	"gemini-2.0-flash": 1048576,
	"llama3":           8192,
	"llama3.1":         131072,
	"mistral":          32768,
	"qwen2.5":          32768,
}

const defaultContextWindow = 8192

// ContextWindow returns the context limit for a model identifier. Versioned
// names ("llama3:8b", "gpt-4o-2024-08-06") match their base entry.
func ContextWindow(model string) int {
	if limit, ok := contextWindows[model]; ok {
		return limit
	}
	// Longest matching base wins so "llama3.1:70b" resolves to llama3.1,
	// not llama3.
	best, bestLen := defaultContextWindow, 0
	for base, limit := range contextWindows {
		if strings.HasPrefix(model, base) && len(base) > bestLen {
			best, bestLen = limit, len(base)
		}
	}
	return best
}

// RegisterModel adds or overrides a model context limit. Intended for callers
// wiring providers the stock table does not know about.
func RegisterModel(model string, contextLimit int) {
	contextWindows[model] = contextLimit
}

// Allocate converts a model's context limit, a reserved-output-token count and
// a safety margin fraction into the usable input token budget:
//
//	floor((contextLimit - reservedOutput) * (1 - margin))
//
// It is a pure function of its configuration and fails when the result is not
// positive.
func Allocate(model string, reservedOutput int, margin float64) (int, error) {
	limit := ContextWindow(model)
	usable := int(math.Floor(float64(limit-reservedOutput) * (1 - margin)))
	if usable <= 0 {
		return 0, &ErrBudgetConfiguration{Model: model, Computed: usable}
	}
	return usable, nil
}

// EstimateTokens approximates the token count of a text when no precomputed
// count is available. Four characters per token tracks English legal prose
// closely enough for budgeting.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / 4
	if n == 0 {
		n = 1
	}
	return n
}
