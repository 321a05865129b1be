package compressor

import (
	"fmt"
	"sort"
	"strings"

	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

// Result is the compressed evidence plus any degradation warning.
type Result struct {
	Evidence *schema.EvidenceSet
	// DroppedDocuments lists documents removed entirely because even one
	// chunk per document exceeded the budget. Never silent: the pipeline
	// records it as a stage warning.
	DroppedDocuments []string
	// DroppedChunks counts chunks removed to fit the budget.
	DroppedChunks int
}

// Warning renders the degradation note for the stage log, or "" when nothing
// was dropped.
func (r *Result) Warning() string {
	if len(r.DroppedDocuments) > 0 {
		return fmt.Sprintf("budget forced dropping documents: %s", strings.Join(r.DroppedDocuments, ", "))
	}
	if r.DroppedChunks > 0 {
		return fmt.Sprintf("dropped %d chunks to fit token budget", r.DroppedChunks)
	}
	return ""
}

// Compressor reduces an EvidenceSet to fit the usable token budget while
// preserving document coverage, per-document relevance and chunk-type
// diversity, in that priority order.
type Compressor struct {
	log *logger.Logger
}

// New creates a Compressor.
func New(log *logger.Logger) *Compressor {
	return &Compressor{log: log}
}

// Compress returns a reduced EvidenceSet whose token total is at most
// budgetTokens. Retained chunks keep their original order relative to their
// document position; compression only removes, never reorders.
func (c *Compressor) Compress(evidence *schema.EvidenceSet, budgetTokens int) *Result {
	res := &Result{Evidence: evidence}
	if evidence.TokenTotal() <= budgetTokens {
		return res
	}

	keep := c.selectChunks(evidence, budgetTokens, res)

	compressed := schema.NewEvidenceSet()
	for _, sc := range evidence.Chunks() {
		if keep[sc.Chunk.ID] {
			compressed.Add(sc)
		}
	}
	res.DroppedChunks = evidence.Len() - compressed.Len() - res.droppedChunkCount(evidence)
	res.Evidence = compressed

	if c.log != nil && (res.DroppedChunks > 0 || len(res.DroppedDocuments) > 0) {
		c.log.Warn(res.Warning())
	}
	return res
}

// droppedChunkCount counts chunks belonging to fully dropped documents so the
// DroppedChunks figure only reflects per-chunk trimming.
func (r *Result) droppedChunkCount(evidence *schema.EvidenceSet) int {
	dropped := make(map[string]bool, len(r.DroppedDocuments))
	for _, id := range r.DroppedDocuments {
		dropped[id] = true
	}
	n := 0
	for _, sc := range evidence.Chunks() {
		if dropped[sc.Chunk.DocumentID] {
			n++
		}
	}
	return n
}

// selectChunks decides which chunk ids survive compression.
func (c *Compressor) selectChunks(evidence *schema.EvidenceSet, budgetTokens int, res *Result) map[string]bool {
	groups := evidence.ByDocument()
	docOrder := evidence.DocumentIDs()

	best := bestChunks(groups, docOrder)

	// Coverage first: one representative chunk per document. If even that
	// exceeds the budget, drop whole documents in ascending best-score
	// order and warn.
	coverageCost := 0
	for _, sc := range best {
		coverageCost += sc.Chunk.TokenCount
	}
	for coverageCost > budgetTokens && len(best) > 0 {
		victim := lowestScoringDocument(best)
		coverageCost -= best[victim].Chunk.TokenCount
		delete(best, victim)
		delete(groups, victim)
		res.DroppedDocuments = append(res.DroppedDocuments, victim)
	}
	sort.Strings(res.DroppedDocuments)

	keep := make(map[string]bool, evidence.Len())
	spent := 0
	for _, sc := range best {
		keep[sc.Chunk.ID] = true
		spent += sc.Chunk.TokenCount
	}

	// Then fill with the highest-similarity remaining chunks. A structural
	// chunk (heading) is preferred over a same-scored content chunk when a
	// content chunk from its section is already retained, since headings
	// carry the citation context.
	var rest []*schema.ScoredChunk
	for _, chunks := range groups {
		for _, sc := range chunks {
			if !keep[sc.Chunk.ID] {
				rest = append(rest, sc)
			}
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i], rest[j]
		pa, pb := priority(a, keep, groups), priority(b, keep, groups)
		if pa != pb {
			return pa > pb
		}
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.Position < b.Chunk.Position
	})
	for _, sc := range rest {
		if spent+sc.Chunk.TokenCount > budgetTokens {
			continue
		}
		keep[sc.Chunk.ID] = true
		spent += sc.Chunk.TokenCount
	}
	return keep
}

// priority boosts structural chunks whose section already has a retained
// content chunk.
func priority(sc *schema.ScoredChunk, keep map[string]bool, groups map[string][]*schema.ScoredChunk) int {
	if sc.Chunk.ChunkType != schema.ChunkTypeHeading || sc.Chunk.SectionTitle == "" {
		return 0
	}
	for _, sibling := range groups[sc.Chunk.DocumentID] {
		if keep[sibling.Chunk.ID] &&
			sibling.Chunk.ChunkType == schema.ChunkTypeContent &&
			sibling.Chunk.SectionTitle == sc.Chunk.SectionTitle {
			return 1
		}
	}
	return 0
}

// bestChunks picks the highest-similarity chunk per document, ties broken by
// document position.
func bestChunks(groups map[string][]*schema.ScoredChunk, docOrder []string) map[string]*schema.ScoredChunk {
	best := make(map[string]*schema.ScoredChunk, len(groups))
	for _, docID := range docOrder {
		for _, sc := range groups[docID] {
			cur, ok := best[docID]
			if !ok || sc.SimilarityScore > cur.SimilarityScore ||
				(sc.SimilarityScore == cur.SimilarityScore && sc.Chunk.Position < cur.Chunk.Position) {
				best[docID] = sc
			}
		}
	}
	return best
}

// lowestScoringDocument returns the document whose best chunk scores lowest,
// ties broken by document id for determinism.
func lowestScoringDocument(best map[string]*schema.ScoredChunk) string {
	var victim string
	for docID, sc := range best {
		if victim == "" {
			victim = docID
			continue
		}
		cur := best[victim]
		if sc.SimilarityScore < cur.SimilarityScore ||
			(sc.SimilarityScore == cur.SimilarityScore && docID < victim) {
			victim = docID
		}
	}
	return victim
}
