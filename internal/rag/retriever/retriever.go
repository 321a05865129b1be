package retriever

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/queryanalysis"
	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

// ErrNoDocumentsSelected reports an empty candidate document set. This is a
// user input error and is never retried.
var ErrNoDocumentsSelected = errors.New("no documents selected for retrieval")

// ErrEmptyQuery reports a blank query string.
var ErrEmptyQuery = errors.New("query is empty")

const (
	// avgChunkTokens is the working assumption used to scale top-K to the
	// remaining budget.
	avgChunkTokens = 256

	minTopK = 3
	maxTopK = 25
)

// Config tunes the iterative retrieval loop.
type Config struct {
	MaxRounds      int           // bounded rounds per query (default 5)
	RelevanceFloor float64       // marginal similarity cutoff
	SearchTimeout  time.Duration // per-call chunk store timeout
	RetryAttempts  int           // retries after the first failed attempt
	RetryBackoff   time.Duration // base backoff between attempts
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		MaxRounds:      5,
		RelevanceFloor: 0.35,
		SearchTimeout:  3 * time.Second,
		RetryAttempts:  2,
		RetryBackoff:   200 * time.Millisecond,
	}
}

// Request is one retrieval task.
type Request struct {
	Query        string
	DocumentIDs  []string
	BudgetTokens int

	// DocumentHints maps document ids to human-readable names (catalog
	// filenames). Hint terms for unrepresented documents steer query
	// reformulation on later rounds.
	DocumentHints map[string]string
}

// Result carries the gathered evidence plus per-round diagnostics. On fatal
// failure the partial Result is still returned alongside the error.
type Result struct {
	Evidence *schema.EvidenceSet
	Stages   []schema.ProcessingStage
	Stats    schema.SearchStats
}

// Retriever runs bounded rounds of similarity search and query refinement
// until the evidence is sufficient or a round/token limit is hit.
type Retriever struct {
	embedder interfaces.EmbeddingModel
	searcher interfaces.VectorSearcher
	chunks   interfaces.ChunkStore
	cfg      Config
	log      *logger.Logger
}

// New creates a Retriever.
func New(embedder interfaces.EmbeddingModel, searcher interfaces.VectorSearcher, chunks interfaces.ChunkStore, cfg Config, log *logger.Logger) *Retriever {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultConfig().MaxRounds
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultConfig().SearchTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	return &Retriever{embedder: embedder, searcher: searcher, chunks: chunks, cfg: cfg, log: log}
}

// Retrieve produces an EvidenceSet for the query within the token budget.
// Budget exhaustion is a designed degradation path: the best evidence gathered
// so far is returned rather than an error.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if len(req.DocumentIDs) == 0 {
		return nil, ErrNoDocumentsSelected
	}

	analysis := queryanalysis.Analyze(req.Query)
	res := &Result{Evidence: schema.NewEvidenceSet()}
	remaining := req.BudgetTokens
	emptyRounds := 0

	for round := 1; round <= r.cfg.MaxRounds; round++ {
		// Cancellation is checked between rounds, not only at the call
		// boundary.
		if err := ctx.Err(); err != nil {
			return res, err
		}

		targets := r.uncoveredDocuments(req.DocumentIDs, res.Evidence)
		if round == 1 || len(targets) == 0 {
			targets = req.DocumentIDs
		}

		query := req.Query
		if round > 1 {
			query = queryanalysis.Expand(analysis, r.gapTerms(req, res.Evidence))
		}

		start := time.Now()
		added, hits, bestNew, err := r.runRound(ctx, query, targets, round, remaining, res)
		stage := schema.ProcessingStage{
			StageName:  schema.StageRetrieval,
			Success:    err == nil,
			Duration:   time.Since(start),
			TokenCount: res.Evidence.TokenTotal(),
		}
		if err != nil {
			stage.ErrorMessage = err.Error()
			res.Stages = append(res.Stages, stage)
			return res, fmt.Errorf("retrieval round %d: %w", round, err)
		}
		res.Stages = append(res.Stages, stage)
		res.Stats.RoundsUsed = round
		remaining = req.BudgetTokens - res.Evidence.TokenTotal()

		if bestNew > res.Stats.BestScore {
			res.Stats.BestScore = bestNew
		}

		if remaining <= 0 {
			res.Stats.BudgetExhausted = true
			break
		}
		if hits == 0 {
			// An empty round earns one reformulated retry; two empty
			// rounds in a row end the search.
			emptyRounds++
			if emptyRounds >= 2 {
				break
			}
			continue
		}
		emptyRounds = 0
		if r.sufficient(req.DocumentIDs, res.Evidence, added, bestNew) {
			break
		}
	}

	res.Stats.ChunksSelected = res.Evidence.Len()
	return res, nil
}

// runRound executes one search round and folds its results into the evidence
// set. It returns how many chunks were added, how many hits the search
// produced, and the best score among newly retrieved hits.
func (r *Retriever) runRound(ctx context.Context, query string, targets []string, round, remaining int, res *Result) (int, int, float64, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("embed query: %w", err)
	}

	topK := remaining / avgChunkTokens
	if topK < minTopK {
		topK = minTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	hits, err := r.searchWithRetry(ctx, targets, embedding, topK)
	if err != nil {
		return 0, 0, 0, err
	}
	res.Stats.ChunksConsidered += len(hits)

	bestNew := 0.0
	var wanted []string
	scores := make(map[string]float64, len(hits))
	rounds := make(map[string]int, len(hits))
	for i := range hits {
		hits[i].RoundFound = round
		hit := hits[i]
		if hit.SimilarityScore > bestNew {
			bestNew = hit.SimilarityScore
		}
		if res.Evidence.Contains(hit.ChunkID) {
			continue
		}
		wanted = append(wanted, hit.ChunkID)
		scores[hit.ChunkID] = hit.SimilarityScore
		rounds[hit.ChunkID] = hit.RoundFound
	}
	if len(wanted) == 0 {
		return 0, len(hits), bestNew, nil
	}

	payloads, err := r.chunks.GetChunks(ctx, wanted)
	if err != nil {
		return 0, len(hits), bestNew, fmt.Errorf("resolve chunk payloads: %w", err)
	}

	candidates := make([]*schema.ScoredChunk, 0, len(payloads))
	for id, chunk := range payloads {
		candidates = append(candidates, &schema.ScoredChunk{
			Chunk:           chunk,
			SimilarityScore: scores[id],
			RoundFound:      rounds[id],
		})
	}
	sortCandidates(candidates)

	added := 0
	budgetLeft := remaining
	for _, cand := range candidates {
		if cand.Chunk.TokenCount > budgetLeft {
			continue
		}
		if res.Evidence.Add(cand) {
			budgetLeft -= cand.Chunk.TokenCount
			added++
		}
	}
	return added, len(hits), bestNew, nil
}

// sortCandidates orders by similarity descending; ties break by document
// order (document id, then chunk position) so identical inputs always yield
// identical evidence ordering.
func sortCandidates(candidates []*schema.ScoredChunk) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.Position < b.Chunk.Position
	})
}

// sufficient implements the stopping criterion for rounds that produced hits:
// stop when newly retrieved scores fall below the relevance floor, or when
// every candidate document is represented and nothing new was added. Rounds
// with no hits at all are handled by the caller.
func (r *Retriever) sufficient(documentIDs []string, evidence *schema.EvidenceSet, added int, bestNew float64) bool {
	if bestNew < r.cfg.RelevanceFloor {
		return true
	}
	if added == 0 {
		return true
	}
	return len(r.uncoveredDocuments(documentIDs, evidence)) == 0
}

func (r *Retriever) uncoveredDocuments(documentIDs []string, evidence *schema.EvidenceSet) []string {
	covered := make(map[string]bool)
	for _, id := range evidence.DocumentIDs() {
		covered[id] = true
	}
	var uncovered []string
	for _, id := range documentIDs {
		if !covered[id] {
			uncovered = append(uncovered, id)
		}
	}
	return uncovered
}

// gapTerms derives reformulation terms from the documents that have no
// representative chunk yet, using catalog names when available.
func (r *Retriever) gapTerms(req Request, evidence *schema.EvidenceSet) []string {
	var terms []string
	for _, docID := range r.uncoveredDocuments(req.DocumentIDs, evidence) {
		name, ok := req.DocumentHints[docID]
		if !ok {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		for _, part := range strings.FieldsFunc(base, func(r rune) bool {
			return r == '_' || r == '-' || r == ' ' || r == '.'
		}) {
			if len(part) > 2 {
				terms = append(terms, strings.ToLower(part))
			}
		}
	}
	return terms
}

// searchWithRetry retries transient chunk store failures with bounded
// backoff before surfacing a fatal stage failure.
func (r *Retriever) searchWithRetry(ctx context.Context, targets []string, embedding []float32, topK int) ([]schema.RetrievalResult, error) {
	var lastErr error
	attempts := r.cfg.RetryAttempts + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		searchCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
		hits, err := r.searcher.Search(searchCtx, targets, embedding, topK)
		cancel()
		if err == nil {
			return hits, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts {
			if r.log != nil {
				r.log.Warn(fmt.Sprintf("chunk store search failed (attempt %d/%d): %v", attempt, attempts, err))
			}
			select {
			case <-time.After(r.cfg.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("chunk store unavailable after %d attempts: %w", attempts, lastErr)
}
