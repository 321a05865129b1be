package interfaces

import (
	"context"

	"LegalMind/internal/rag/schema"
)

// VectorSearcher is the similarity-search face of the chunk store. Search is
// restricted to the given document ids and returns at most topK scored hits.
type VectorSearcher interface {
	Search(ctx context.Context, documentIDs []string, queryEmbedding []float32, topK int) ([]schema.RetrievalResult, error)
}

// ChunkStore resolves chunk ids to their full payloads (text and metadata).
type ChunkStore interface {
	GetChunks(ctx context.Context, ids []string) (map[string]*schema.Chunk, error)
}

// EmbeddingModel turns query text into an embedding vector.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLM is the single capability every language model provider must offer.
// Provider identity only affects which backend is called, never the pipeline
// shape.
type LLM interface {
	Generate(ctx context.Context, prompt string, maxOutputTokens int) (*schema.Generation, error)
}

// SessionStore manages conversation state across turns. An unknown id passed
// to GetOrCreate yields a fresh session, never an error, to tolerate
// client-side id loss. AppendTurn must be serialized per session id.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*schema.Session, error)
	Get(ctx context.Context, id string) (*schema.Session, error)
	AppendTurn(ctx context.Context, sessionID string, turn schema.Turn) error
	SetDocumentScope(ctx context.Context, sessionID string, documentIDs []string) error
	List(ctx context.Context) ([]*schema.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// StageObserver receives the stage log of a completed turn. Implementations
// must never fail the request; publishing is fire-and-forget.
type StageObserver interface {
	ObserveStages(ctx context.Context, sessionID string, stages []schema.ProcessingStage)
}
