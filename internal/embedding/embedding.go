package embedding

import (
	"context"
	"fmt"

	"LegalMind/internal/config"
)

// Model is implemented by every embedding backend.
type Model interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for a batch of texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// New creates an embedding model from configuration.
func New(cfg config.EmbeddingConfig) (Model, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.Name)
	case "gemini":
		return NewGoogleModel(cfg.Gemini.APIKey, cfg.Gemini.Name)
	case "ollama":
		return NewOllamaModel(cfg.Ollama.Name, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
