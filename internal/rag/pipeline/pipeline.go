package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"LegalMind/internal/rag/analyzer"
	"LegalMind/internal/rag/budget"
	"LegalMind/internal/rag/compressor"
	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/retriever"
	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

// State names the phase the pipeline is in. FAILED is reachable from any
// non-terminal state; completed stage records are preserved regardless.
type State string

const (
	StatePending      State = "PENDING"
	StateRetrieving   State = "RETRIEVING"
	StateCompressing  State = "COMPRESSING"
	StateAnalyzing    State = "ANALYZING"
	StateSynthesizing State = "SYNTHESIZING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Modes select between the fast iterative path and the detailed multi-stage
// path. The difference is a configuration branch (ANALYZING is skipped in
// fast mode), not a different pipeline.
const (
	ModeFast     = "fast"
	ModeDetailed = "detailed"
)

// InsufficientEvidenceAnswer is returned when retrieval produced no usable
// evidence. The model provider is not consulted in that case so nothing can
// be fabricated.
const InsufficientEvidenceAnswer = "The selected documents do not contain enough relevant information to answer this question. Try rephrasing the question or selecting additional documents."

// Config tunes the orchestrator.
type Config struct {
	SynthesisTimeout time.Duration // model call timeout
	RetryAttempts    int           // provider retries after the first failure
	RetryBackoff     time.Duration
}

// Request is one pipeline run.
type Request struct {
	Query         string
	DocumentIDs   []string
	Mode          string // ModeFast or ModeDetailed
	BudgetTokens  int    // usable input tokens from the allocator
	MaxOutput     int    // output tokens reserved for the answer
	DocumentHints map[string]string
}

// Output is the pipeline's result. On failure the stages gathered so far are
// still populated; partial results are never discarded silently.
type Output struct {
	Answer               string
	Evidence             *schema.EvidenceSet
	Sources              []schema.Source
	Stages               []schema.ProcessingStage
	Stats                schema.SearchStats
	Contradictions       []schema.Contradiction
	Risk                 *schema.RiskAssessment
	Report               *schema.AnalysisReport // detailed mode only
	TokenUsage           schema.TokenUsage
	InsufficientEvidence bool
	FinalState           State
}

// accumulator is the explicit per-run mutable state passed between stages.
// Keeping it off the Pipeline struct keeps concurrent runs independent.
type accumulator struct {
	state    State
	evidence *schema.EvidenceSet
	stages   []schema.ProcessingStage
	stats    schema.SearchStats
	analysis *analyzer.Result
	budget   int
}

// Pipeline sequences retrieval, compression, analysis and synthesis as named,
// independently observable stages.
type Pipeline struct {
	retriever  *retriever.Retriever
	compressor *compressor.Compressor
	analyzer   *analyzer.Analyzer
	llm        interfaces.LLM
	cfg        Config
	log        *logger.Logger
}

// New creates a Pipeline.
func New(ret *retriever.Retriever, comp *compressor.Compressor, an *analyzer.Analyzer, llm interfaces.LLM, cfg Config, log *logger.Logger) *Pipeline {
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 60 * time.Second
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Pipeline{retriever: ret, compressor: comp, analyzer: an, llm: llm, cfg: cfg, log: log}
}

// Run drives the state machine for one request.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	acc := &accumulator{state: StatePending, evidence: schema.NewEvidenceSet(), budget: req.BudgetTokens}

	// RETRIEVING
	acc.state = StateRetrieving
	retRes, err := p.retriever.Retrieve(ctx, retriever.Request{
		Query:         req.Query,
		DocumentIDs:   req.DocumentIDs,
		BudgetTokens:  req.BudgetTokens,
		DocumentHints: req.DocumentHints,
	})
	if retRes != nil {
		acc.stages = append(acc.stages, retRes.Stages...)
		acc.stats = retRes.Stats
		acc.evidence = retRes.Evidence
	}
	if err != nil {
		return p.fail(acc), err
	}

	// COMPRESSING
	acc.state = StateCompressing
	start := time.Now()
	compRes := p.compressor.Compress(acc.evidence, req.BudgetTokens)
	acc.evidence = compRes.Evidence
	acc.stages = append(acc.stages, schema.ProcessingStage{
		StageName:  schema.StageCompression,
		Success:    true,
		Duration:   time.Since(start),
		TokenCount: acc.evidence.TokenTotal(),
		Warning:    compRes.Warning(),
	})
	acc.stats.ChunksSelected = acc.evidence.Len()

	// ANALYZING is skipped in fast mode.
	if req.Mode == ModeDetailed {
		acc.state = StateAnalyzing
		start = time.Now()
		acc.analysis = p.analyzer.Analyze(acc.evidence)
		acc.stages = append(acc.stages, schema.ProcessingStage{
			StageName:  schema.StageAnalysis,
			Success:    true,
			Duration:   time.Since(start),
			TokenCount: acc.evidence.TokenTotal(),
			Warning:    acc.analysis.Warning,
		})
	}

	// SYNTHESIZING
	acc.state = StateSynthesizing
	if err := ctx.Err(); err != nil {
		// Cancellation must not reach the model provider.
		return p.fail(acc), err
	}

	if acc.evidence.Len() == 0 {
		acc.stages = append(acc.stages, schema.ProcessingStage{
			StageName: schema.StageSynthesis,
			Success:   true,
			Warning:   "no evidence gathered; answer degraded to insufficient-evidence notice",
		})
		acc.state = StateDone
		out := p.output(acc, InsufficientEvidenceAnswer, schema.TokenUsage{})
		out.InsufficientEvidence = true
		out.FinalState = StateDone
		return out, nil
	}

	prompt := p.buildPrompt(req, acc)
	start = time.Now()
	gen, err := p.generateWithRetry(ctx, prompt, req.MaxOutput)
	stage := schema.ProcessingStage{
		StageName:  schema.StageSynthesis,
		Duration:   time.Since(start),
		TokenCount: budget.EstimateTokens(prompt),
	}
	if err != nil {
		stage.ErrorMessage = err.Error()
		acc.stages = append(acc.stages, stage)
		return p.fail(acc), fmt.Errorf("synthesis: %w", err)
	}
	stage.Success = true
	acc.stages = append(acc.stages, stage)

	usage := gen.Usage
	if usage.TotalTokens == 0 {
		usage.InputTokens = budget.EstimateTokens(prompt)
		usage.OutputTokens = budget.EstimateTokens(gen.Text)
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}

	acc.state = StateDone
	out := p.output(acc, gen.Text, usage)
	out.FinalState = StateDone
	return out, nil
}

// fail moves the run to FAILED, preserving the stage log gathered so far.
func (p *Pipeline) fail(acc *accumulator) *Output {
	acc.state = StateFailed
	out := p.output(acc, "", schema.TokenUsage{})
	out.FinalState = StateFailed
	return out
}

// output assembles the result from the accumulator. Sources are built from
// the evidence actually sent to the model, which keeps citation integrity by
// construction: nothing outside that set can be cited.
func (p *Pipeline) output(acc *accumulator, answer string, usage schema.TokenUsage) *Output {
	out := &Output{
		Answer:     answer,
		Evidence:   acc.evidence,
		Stages:     acc.stages,
		Stats:      acc.stats,
		TokenUsage: usage,
	}
	for _, sc := range acc.evidence.Chunks() {
		out.Sources = append(out.Sources, schema.Source{
			ChunkID:         sc.Chunk.ID,
			DocumentID:      sc.Chunk.DocumentID,
			ChunkType:       sc.Chunk.ChunkType,
			SimilarityScore: sc.SimilarityScore,
			ChunkPreview:    schema.Preview(sc.Chunk.Text),
		})
	}
	if acc.analysis != nil {
		out.Contradictions = acc.analysis.Contradictions
		risk := acc.analysis.Risk
		out.Risk = &risk
		out.Report = &schema.AnalysisReport{
			RiskAssessment: acc.analysis.Risk,
			Contradictions: acc.analysis.Contradictions,
			Stages:         acc.stages,
			TokenUsage:     usage,
		}
	}
	return out
}

// buildPrompt renders the grounded synthesis prompt from the compressed
// evidence and, in detailed mode, the analysis findings.
func (p *Pipeline) buildPrompt(req Request, acc *accumulator) string {
	var sb strings.Builder

	sb.WriteString("You are a specialized legal document assistant. Answer the question using only the document context below.\n")
	sb.WriteString("Cite the document and section you rely on. If the context is incomplete, say what is missing. For legal matters, recommend consulting qualified counsel.\n\n")
	sb.WriteString("Document context:\n")

	for i, sc := range acc.evidence.Chunks() {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("Passage %d (document %s", i+1, sc.Chunk.DocumentID))
		if sc.Chunk.SectionTitle != "" {
			sb.WriteString(", section \"" + sc.Chunk.SectionTitle + "\"")
		}
		sb.WriteString(fmt.Sprintf(", relevance %.3f):\n", sc.SimilarityScore))
		sb.WriteString(sc.Chunk.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("---\n")

	if acc.analysis != nil && len(acc.analysis.Contradictions) > 0 {
		sb.WriteString("\nDetected inconsistencies between the documents (address them explicitly if relevant):\n")
		for _, c := range acc.analysis.Contradictions {
			sb.WriteString("- [" + c.Severity + "] " + c.Description + "\n")
		}
	}

	sb.WriteString("\nQuestion: " + req.Query)
	return sb.String()
}

// generateWithRetry calls the provider with a synthesis timeout, retrying
// transient failures with bounded backoff.
func (p *Pipeline) generateWithRetry(ctx context.Context, prompt string, maxOutput int) (*schema.Generation, error) {
	var lastErr error
	attempts := p.cfg.RetryAttempts + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		genCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
		gen, err := p.llm.Generate(genCtx, prompt, maxOutput)
		cancel()
		if err == nil {
			return gen, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts {
			if p.log != nil {
				p.log.Warn(fmt.Sprintf("model provider failed (attempt %d/%d): %v", attempt, attempts, err))
			}
			select {
			case <-time.After(p.cfg.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("model provider unavailable after %d attempts: %w", attempts, lastErr)
}
