package chunkstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/schema"
)

// chunkRecord is the MongoDB shape of one stored chunk. The ingestion side
// writes these documents; the reasoning core only reads them.
type chunkRecord struct {
	ID           string `bson:"_id"`
	DocumentID   string `bson:"document_id"`
	Text         string `bson:"text"`
	EmbeddingRef string `bson:"embedding_ref,omitempty"`
	ChunkType    string `bson:"chunk_type"`
	PageNumber   int    `bson:"page_number,omitempty"`
	SectionTitle string `bson:"section_title,omitempty"`
	Position     int    `bson:"position"`
	TokenCount   int    `bson:"token_count"`
}

// MongoStore resolves chunk ids to their full payloads from a MongoDB
// collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a chunk store backed by the given collection.
func NewMongoStore(db *mongo.Database, collectionName string) *MongoStore {
	return &MongoStore{
		collection: db.Collection(collectionName),
	}
}

// GetChunks fetches every chunk whose id is in ids. Ids with no stored chunk
// are simply absent from the result map.
func (s *MongoStore) GetChunks(ctx context.Context, ids []string) (map[string]*schema.Chunk, error) {
	chunks := make(map[string]*schema.Chunk, len(ids))
	if len(ids) == 0 {
		return chunks, nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var records []chunkRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode chunks: %w", err)
	}

	for _, rec := range records {
		chunks[rec.ID] = &schema.Chunk{
			ID:           rec.ID,
			DocumentID:   rec.DocumentID,
			Text:         rec.Text,
			EmbeddingRef: rec.EmbeddingRef,
			ChunkType:    rec.ChunkType,
			PageNumber:   rec.PageNumber,
			SectionTitle: rec.SectionTitle,
			Position:     rec.Position,
			TokenCount:   rec.TokenCount,
		}
	}

	return chunks, nil
}

var _ interfaces.ChunkStore = (*MongoStore)(nil)
