package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"LegalMind/internal/database/milvus"
	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

const (
	// Collection fields we filter on or read back.
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldDocumentID = "document_id"
)

// MilvusStore answers similarity searches against the chunk collection. Each
// search is restricted to the caller's document scope through a metadata
// filter, so chunks of unselected documents can never surface.
type MilvusStore struct {
	log        *logger.Logger
	client     client.Client
	collection string
}

// NewMilvusStore wraps the shared Milvus client as a VectorSearcher.
func NewMilvusStore(milvusClient *milvus.MilvusClient, log *logger.Logger) (*MilvusStore, error) {
	if milvusClient == nil || milvusClient.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:        log,
		client:     milvusClient.Client,
		collection: milvusClient.Config.Collection,
	}, nil
}

// Search runs a vector similarity search scoped to the given document ids.
func (s *MilvusStore) Search(ctx context.Context, documentIDs []string, queryEmbedding []float32, topK int) ([]schema.RetrievalResult, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	filterExpr := buildScopeExpression(documentIDs)
	searchParams, _ := entity.NewIndexIvfFlatSearchParam(10)
	outputFields := []string{FieldID}

	searchResults, err := s.client.Search(
		ctx, s.collection, []string{}, filterExpr, outputFields,
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		FieldEmbedding, entity.COSINE, topK, searchParams,
	)
	if err != nil {
		s.log.Error(fmt.Sprintf("Milvus search failed: %v", err))
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var results []schema.RetrievalResult
	for _, res := range searchResults {
		var idCol *entity.ColumnVarChar
		for _, field := range res.Fields {
			if field.Name() == FieldID {
				idCol, _ = field.(*entity.ColumnVarChar)
			}
		}
		if idCol == nil {
			s.log.Warn("Search result is missing the id field, skipping")
			continue
		}
		idData := idCol.Data()

		for i := 0; i < res.ResultCount && i < len(idData); i++ {
			results = append(results, schema.RetrievalResult{
				ChunkID:         idData[i],
				SimilarityScore: clampScore(res.Scores[i]),
			})
		}
	}

	return results, nil
}

// clampScore maps a raw cosine score into [0,1]. Cosine similarity can go
// negative for opposing vectors; downstream relevance thresholds assume
// non-negative scores, so anything below zero counts as zero relevance.
func clampScore(score float32) float64 {
	s := float64(score)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// buildScopeExpression renders the document scope as a Milvus filter.
func buildScopeExpression(documentIDs []string) string {
	quoted := make([]string, len(documentIDs))
	for i, id := range documentIDs {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("%s in [%s]", FieldDocumentID, strings.Join(quoted, ", "))
}

var _ interfaces.VectorSearcher = (*MilvusStore)(nil)
