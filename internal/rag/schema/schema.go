package schema

import "time"

// Chunk types produced by the ingestion side. The reasoning core only reads
// them; structural chunks (headings, section titles) carry citation context.
const (
	ChunkTypeContent = "content"
	ChunkTypeHeading = "heading"
	ChunkTypeTable   = "table"
)

// Chunk is a bounded span of extracted document text, the atomic unit of
// retrieval. Chunks are immutable once created and owned by their source
// document.
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	Text         string `json:"text"`
	EmbeddingRef string `json:"embedding_ref,omitempty"`
	ChunkType    string `json:"chunk_type"`
	PageNumber   int    `json:"page_number,omitempty"`
	SectionTitle string `json:"section_title,omitempty"`
	Position     int    `json:"position"` // order of the chunk within its document
	TokenCount   int    `json:"token_count"`
}

// RetrievalResult is one scored hit from the chunk store, scoped to a single
// query round.
type RetrievalResult struct {
	ChunkID         string  `json:"chunk_id"`
	SimilarityScore float64 `json:"similarity_score"` // in [0,1]
	RoundFound      int     `json:"round_found"`
}

// ScoredChunk pairs a chunk with the retrieval score that selected it.
type ScoredChunk struct {
	Chunk           *Chunk  `json:"chunk"`
	SimilarityScore float64 `json:"similarity_score"`
	RoundFound      int     `json:"round_found"`
}

// EvidenceSet is the ordered collection of chunks selected to ground one
// answer. It never contains duplicate chunk ids and must not exceed the
// active token budget once compressed.
type EvidenceSet struct {
	chunks []*ScoredChunk
	seen   map[string]bool
}

// NewEvidenceSet creates an empty EvidenceSet.
func NewEvidenceSet() *EvidenceSet {
	return &EvidenceSet{seen: make(map[string]bool)}
}

// Add appends a scored chunk unless its id is already present. It reports
// whether the chunk was added.
func (e *EvidenceSet) Add(sc *ScoredChunk) bool {
	if sc == nil || sc.Chunk == nil || e.seen[sc.Chunk.ID] {
		return false
	}
	e.seen[sc.Chunk.ID] = true
	e.chunks = append(e.chunks, sc)
	return true
}

// Contains reports whether a chunk id is part of the set.
func (e *EvidenceSet) Contains(chunkID string) bool {
	return e.seen[chunkID]
}

// Chunks returns the chunks in selection order.
func (e *EvidenceSet) Chunks() []*ScoredChunk {
	return e.chunks
}

// Len returns the number of chunks in the set.
func (e *EvidenceSet) Len() int {
	return len(e.chunks)
}

// TokenTotal sums the token counts of every chunk in the set.
func (e *EvidenceSet) TokenTotal() int {
	total := 0
	for _, sc := range e.chunks {
		total += sc.Chunk.TokenCount
	}
	return total
}

// ChunkIDs returns the chunk ids in selection order.
func (e *EvidenceSet) ChunkIDs() []string {
	ids := make([]string, len(e.chunks))
	for i, sc := range e.chunks {
		ids[i] = sc.Chunk.ID
	}
	return ids
}

// DocumentIDs returns the distinct document ids represented in the set, in
// first-seen order.
func (e *EvidenceSet) DocumentIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, sc := range e.chunks {
		if !seen[sc.Chunk.DocumentID] {
			seen[sc.Chunk.DocumentID] = true
			ids = append(ids, sc.Chunk.DocumentID)
		}
	}
	return ids
}

// ByDocument groups the chunks by document id, preserving selection order
// within each group.
func (e *EvidenceSet) ByDocument() map[string][]*ScoredChunk {
	groups := make(map[string][]*ScoredChunk)
	for _, sc := range e.chunks {
		groups[sc.Chunk.DocumentID] = append(groups[sc.Chunk.DocumentID], sc)
	}
	return groups
}

// Pipeline stage names recorded in ProcessingStage entries.
const (
	StageRetrieval   = "iterative_retrieval"
	StageCompression = "compression"
	StageAnalysis    = "legal_analysis"
	StageSynthesis   = "synthesis"
)

// ProcessingStage is one append-only log entry per pipeline phase. Entries
// are immutable once written.
type ProcessingStage struct {
	StageName    string        `json:"stage_name"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
	TokenCount   int           `json:"token_count"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Warning      string        `json:"warning,omitempty"`
}

// Contradiction severities, ordered from least to most serious.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Contradiction kinds.
const (
	ContradictionNumeric      = "numeric_conflict"
	ContradictionSupersession = "temporal_supersession"
)

// Contradiction records conflicting claims found across two or more chunks.
type Contradiction struct {
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	Confidence     float64  `json:"confidence"` // in [0,1]
	SourceChunkIDs []string `json:"source_chunk_ids"`
	Informational  bool     `json:"informational,omitempty"` // supersession, not a true conflict
}

// Risk levels reported by the analyzer.
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

// RiskAssessment aggregates contradiction findings into an overall risk view.
type RiskAssessment struct {
	OverallRiskLevel string   `json:"overall_risk_level"`
	RiskScore        float64  `json:"risk_score"` // in [0,1]
	RiskFactors      []string `json:"risk_factors"`
}

// AnalysisReport is produced once per detailed-mode turn.
type AnalysisReport struct {
	RiskAssessment RiskAssessment    `json:"risk_assessment"`
	Contradictions []Contradiction   `json:"contradictions"`
	Stages         []ProcessingStage `json:"stages"`
	TokenUsage     TokenUsage        `json:"token_usage"`
}

// Generation is the text produced by a language model provider together with
// its token accounting.
type Generation struct {
	Text  string     `json:"text"`
	Usage TokenUsage `json:"usage"`
}

// TokenUsage records token accounting for one turn.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// SearchStats summarizes the retrieval phase of one turn.
type SearchStats struct {
	RoundsUsed       int     `json:"rounds_used"`
	ChunksConsidered int     `json:"chunks_considered"`
	ChunksSelected   int     `json:"chunks_selected"`
	BestScore        float64 `json:"best_score"`
	BudgetExhausted  bool    `json:"budget_exhausted"`
}

// Source maps an answer claim back to a chunk that was actually part of the
// evidence sent to the model.
type Source struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
	ChunkType       string  `json:"chunk_type"`
	SimilarityScore float64 `json:"similarity_score"`
	ChunkPreview    string  `json:"chunk_preview"`
}

// ResponseMetadata carries the per-turn diagnostics attached to every answer.
type ResponseMetadata struct {
	SearchStats          SearchStats       `json:"search_stats"`
	ProcessingStages     []ProcessingStage `json:"processing_stages"`
	Contradictions       []Contradiction   `json:"contradictions,omitempty"`
	RiskAssessment       *RiskAssessment   `json:"risk_assessment,omitempty"`
	TokenUsage           TokenUsage        `json:"token_usage"`
	InsufficientEvidence bool              `json:"insufficient_evidence,omitempty"`
}

// QueryResult is the reasoning core's answer to one query.
type QueryResult struct {
	Answer    string           `json:"answer"`
	Sources   []Source         `json:"sources"`
	SessionID string           `json:"session_id"`
	Metadata  ResponseMetadata `json:"metadata"`
}

// Turn is one (query, evidence, answer) triple in a session's history. Report
// is set only for detailed-mode turns.
type Turn struct {
	Query     string          `json:"query"`
	ChunkIDs  []string        `json:"chunk_ids"`
	Answer    string          `json:"answer"`
	Report    *AnalysisReport `json:"analysis_report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Session holds conversation history and selected-document scope across
// turns. The session store owns serialization of mutations.
type Session struct {
	ID          string    `json:"id"`
	DocumentIDs []string  `json:"document_ids"`
	Turns       []Turn    `json:"turns"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// MaxPreviewRunes caps the chunk preview length attached to sources.
const MaxPreviewRunes = 200

// Preview returns the chunk text truncated for source listings.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxPreviewRunes {
		return text
	}
	return string(runes[:MaxPreviewRunes]) + "..."
}
