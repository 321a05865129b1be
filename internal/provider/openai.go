package provider

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"LegalMind/internal/rag/schema"
)

// OpenAIClient adapts the OpenAI chat completion API to the Generate
// capability.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed provider.
func NewOpenAI(model, apiKey string) (*OpenAIClient, error) {
	cfg := openai.DefaultConfig(apiKey)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate produces an answer for the prompt, reporting token usage from the
// API response.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, maxOutputTokens int) (*schema.Generation, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &schema.Generation{
		Text: resp.Choices[0].Message.Content,
		Usage: schema.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
