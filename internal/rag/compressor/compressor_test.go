package compressor

import (
	"testing"

	"LegalMind/internal/rag/schema"
)

func chunk(id, docID string, position, tokens int, chunkType, section string) *schema.Chunk {
	return &schema.Chunk{
		ID:           id,
		DocumentID:   docID,
		Text:         "text of " + id,
		ChunkType:    chunkType,
		SectionTitle: section,
		Position:     position,
		TokenCount:   tokens,
	}
}

func evidenceOf(scs ...*schema.ScoredChunk) *schema.EvidenceSet {
	ev := schema.NewEvidenceSet()
	for _, sc := range scs {
		ev.Add(sc)
	}
	return ev
}

func TestCompressPassThroughWhenFitting(t *testing.T) {
	ev := evidenceOf(
		&schema.ScoredChunk{Chunk: chunk("a1", "doc-a", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.9},
		&schema.ScoredChunk{Chunk: chunk("b1", "doc-b", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.8},
	)

	res := New(nil).Compress(ev, 500)
	if res.Evidence != ev {
		t.Error("fitting evidence should be returned unchanged")
	}
	if res.Warning() != "" {
		t.Errorf("unexpected warning %q", res.Warning())
	}
}

func TestCompressPreservesDocumentCoverage(t *testing.T) {
	ev := evidenceOf(
		&schema.ScoredChunk{Chunk: chunk("a1", "doc-a", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.95},
		&schema.ScoredChunk{Chunk: chunk("a2", "doc-a", 1, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.90},
		&schema.ScoredChunk{Chunk: chunk("a3", "doc-a", 2, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.85},
		// doc-b scores far below every doc-a chunk.
		&schema.ScoredChunk{Chunk: chunk("b1", "doc-b", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.40},
	)

	res := New(nil).Compress(ev, 300)

	if got := res.Evidence.TokenTotal(); got > 300 {
		t.Errorf("TokenTotal() = %d exceeds budget", got)
	}
	if !res.Evidence.Contains("b1") {
		t.Error("coverage invariant violated: doc-b lost its only chunk while doc-a keeps several")
	}
	if !res.Evidence.Contains("a1") {
		t.Error("best doc-a chunk should be retained")
	}
	if len(res.DroppedDocuments) != 0 {
		t.Errorf("no document should be fully dropped, got %v", res.DroppedDocuments)
	}
}

func TestCompressDropsWholeDocumentWithWarning(t *testing.T) {
	// Even one chunk per document exceeds the budget: the lowest-scoring
	// document goes, and the result says so.
	ev := evidenceOf(
		&schema.ScoredChunk{Chunk: chunk("a1", "doc-a", 0, 150, schema.ChunkTypeContent, ""), SimilarityScore: 0.9},
		&schema.ScoredChunk{Chunk: chunk("b1", "doc-b", 0, 150, schema.ChunkTypeContent, ""), SimilarityScore: 0.3},
	)

	res := New(nil).Compress(ev, 200)

	if len(res.DroppedDocuments) != 1 || res.DroppedDocuments[0] != "doc-b" {
		t.Fatalf("DroppedDocuments = %v, want [doc-b]", res.DroppedDocuments)
	}
	if res.Warning() == "" {
		t.Error("dropping a document must produce a warning")
	}
	if !res.Evidence.Contains("a1") || res.Evidence.Contains("b1") {
		t.Errorf("kept chunks = %v, want only a1", res.Evidence.ChunkIDs())
	}
}

func TestCompressKeepsOriginalOrder(t *testing.T) {
	ev := evidenceOf(
		&schema.ScoredChunk{Chunk: chunk("a1", "doc-a", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.5},
		&schema.ScoredChunk{Chunk: chunk("a2", "doc-a", 1, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.9},
		&schema.ScoredChunk{Chunk: chunk("a3", "doc-a", 2, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.7},
	)

	res := New(nil).Compress(ev, 200)

	ids := res.Evidence.ChunkIDs()
	if len(ids) != 2 {
		t.Fatalf("kept %d chunks, want 2", len(ids))
	}
	// a2 (0.9) and a3 (0.7) survive; their relative order must match the
	// original evidence order, not score order.
	if ids[0] != "a2" || ids[1] != "a3" {
		t.Errorf("order = %v, want [a2 a3]", ids)
	}
}

func TestCompressPrefersHeadingOfRetainedSection(t *testing.T) {
	ev := evidenceOf(
		&schema.ScoredChunk{Chunk: chunk("a1", "doc-a", 1, 100, schema.ChunkTypeContent, "Termination"), SimilarityScore: 0.9},
		&schema.ScoredChunk{Chunk: chunk("h1", "doc-a", 0, 50, schema.ChunkTypeHeading, "Termination"), SimilarityScore: 0.4},
		&schema.ScoredChunk{Chunk: chunk("a2", "doc-a", 2, 50, schema.ChunkTypeContent, "Payment"), SimilarityScore: 0.4},
	)

	res := New(nil).Compress(ev, 150)

	if !res.Evidence.Contains("h1") {
		t.Error("heading of a retained section should outrank a same-scored content chunk")
	}
	if res.Evidence.Contains("a2") {
		t.Error("budget should not admit both tied chunks")
	}
}

func TestCompressDeterministicTieBreak(t *testing.T) {
	build := func() *schema.EvidenceSet {
		return evidenceOf(
			&schema.ScoredChunk{Chunk: chunk("b1", "doc-b", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.5},
			&schema.ScoredChunk{Chunk: chunk("a1", "doc-a", 0, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.5},
			&schema.ScoredChunk{Chunk: chunk("a2", "doc-a", 1, 100, schema.ChunkTypeContent, ""), SimilarityScore: 0.5},
		)
	}

	first := New(nil).Compress(build(), 200).Evidence.ChunkIDs()
	for i := 0; i < 10; i++ {
		got := New(nil).Compress(build(), 200).Evidence.ChunkIDs()
		if len(got) != len(first) {
			t.Fatalf("selection size varies: %v vs %v", got, first)
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("selection varies across runs: %v vs %v", got, first)
			}
		}
	}
}
