package provider

import (
	"context"
	"fmt"

	"LegalMind/internal/config"
	"LegalMind/internal/rag/interfaces"
)

// Kind names a language model backend.
type Kind string

const (
	OpenAI Kind = "openai"
	Gemini Kind = "gemini"
	Ollama Kind = "ollama"
)

// New is a factory returning the configured provider behind the single
// Generate capability. Provider identity only selects the backend; the
// pipeline shape never changes with it.
func New(ctx context.Context, cfg config.LLMConfig) (interfaces.LLM, string, error) {
	switch Kind(cfg.Provider) {
	case OpenAI:
		client, err := NewOpenAI(cfg.OpenAI.Name, cfg.OpenAI.APIKey)
		return client, cfg.OpenAI.Name, err
	case Gemini:
		client, err := NewGemini(ctx, cfg.Gemini.Name, cfg.Gemini.APIKey)
		return client, cfg.Gemini.Name, err
	case Ollama:
		client, err := NewOllama(cfg.Ollama.Name, cfg.Ollama.BaseURL)
		return client, cfg.Ollama.Name, err
	default:
		return nil, "", fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
