package provider

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"LegalMind/internal/rag/schema"
)

// GeminiClient adapts the Gemini API to the Generate capability.
type GeminiClient struct {
	model *genai.GenerativeModel
}

// NewGemini creates a Gemini-backed provider.
func NewGemini(ctx context.Context, model, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{model: client.GenerativeModel(model)}, nil
}

// modelFor returns the model to use for one call. The shared model is never
// mutated: concurrent requests each get their own copy when they need a
// per-call output cap.
func (c *GeminiClient) modelFor(maxOutputTokens int) *genai.GenerativeModel {
	if maxOutputTokens <= 0 {
		return c.model
	}
	m := *c.model
	m.SetMaxOutputTokens(int32(maxOutputTokens))
	return &m
}

// Generate produces an answer for the prompt, reporting token usage from the
// response metadata.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, maxOutputTokens int) (*schema.Generation, error) {
	resp, err := c.modelFor(maxOutputTokens).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	gen := &schema.Generation{Text: text}
	if resp.UsageMetadata != nil {
		gen.Usage = schema.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return gen, nil
}
