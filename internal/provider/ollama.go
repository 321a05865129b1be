package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"LegalMind/internal/rag/schema"
)

// OllamaClient adapts a local Ollama server to the Generate capability.
type OllamaClient struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama-backed provider. An empty baseURL defaults to
// the local server.
func NewOllama(model, baseURL string) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := &http.Client{Timeout: 120 * time.Second}
	return &OllamaClient{
		client: ollama.NewClient(parsedURL, hc),
		model:  model,
	}, nil
}

// Generate produces an answer for the prompt, reporting token usage from the
// eval metrics.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, maxOutputTokens int) (*schema.Generation, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if maxOutputTokens > 0 {
		req.Options = map[string]interface{}{"num_predict": maxOutputTokens}
	}

	var result *ollama.GenerateResponse
	err := c.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		result = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("ollama returned no response")
	}

	return &schema.Generation{
		Text: result.Response,
		Usage: schema.TokenUsage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
			TotalTokens:  result.PromptEvalCount + result.EvalCount,
		},
	}, nil
}
