package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"LegalMind/internal/catalog"
	"LegalMind/internal/rag/budget"
	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/pipeline"
	"LegalMind/internal/rag/queryanalysis"
	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

// ErrEmptyQuery is returned when a query request carries no question text.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrUnknownDocuments is returned when a request names document ids the
// catalog has never seen.
var ErrUnknownDocuments = errors.New("request names unknown documents")

// QueryRequest is one question against the document corpus.
type QueryRequest struct {
	Query       string   `json:"query"`
	SessionID   string   `json:"session_id"`
	DocumentIDs []string `json:"document_ids"`
	Mode        string   `json:"mode"` // "fast" (default) or "detailed"
}

// Config carries the budget settings the service needs per query.
type Config struct {
	ModelName            string
	ReservedOutputTokens int
	SafetyMargin         float64
}

// DocumentCatalog is the slice of the catalog DAL the service needs.
type DocumentCatalog interface {
	ListCompleted(ctx context.Context) ([]*catalog.Document, error)
	GetByIDs(ctx context.Context, ids []string) ([]*catalog.Document, error)
}

// QueryService orchestrates one query turn: scope resolution, session
// bookkeeping, budget allocation and the analysis pipeline.
type QueryService struct {
	log      *logger.Logger
	sessions interfaces.SessionStore
	catalog  DocumentCatalog
	pipe     *pipeline.Pipeline
	observer interfaces.StageObserver
	cfg      Config
}

// NewQueryService creates a QueryService.
func NewQueryService(log *logger.Logger, sessions interfaces.SessionStore, cat DocumentCatalog, pipe *pipeline.Pipeline, obs interfaces.StageObserver, cfg Config) *QueryService {
	if obs == nil {
		obs = noopObserver{}
	}
	return &QueryService{
		log:      log,
		sessions: sessions,
		catalog:  cat,
		pipe:     pipe,
		observer: obs,
		cfg:      cfg,
	}
}

type noopObserver struct{}

func (noopObserver) ObserveStages(context.Context, string, []schema.ProcessingStage) {}

// Query answers one question. The returned result always carries the session
// id actually used, which may differ from the request when the client sent an
// unknown or empty id.
func (s *QueryService) Query(ctx context.Context, req QueryRequest) (*schema.QueryResult, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	mode := req.Mode
	if mode == "" {
		mode = pipeline.ModeFast
	}

	sess, err := s.sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	log := s.log.WithSession(sess.ID)

	scope, hints, err := s.resolveScope(ctx, sess, req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	budgetTokens, err := budget.Allocate(s.cfg.ModelName, s.cfg.ReservedOutputTokens, s.cfg.SafetyMargin)
	if err != nil {
		return nil, fmt.Errorf("budget allocation: %w", err)
	}

	out, runErr := s.pipe.Run(ctx, pipeline.Request{
		Query:         req.Query,
		DocumentIDs:   scope,
		Mode:          mode,
		BudgetTokens:  budgetTokens,
		MaxOutput:     s.cfg.ReservedOutputTokens,
		DocumentHints: hints,
	})

	// Stage diagnostics are published even for failed runs.
	if out != nil && len(out.Stages) > 0 {
		s.publishStages(sess.ID, out.Stages)
	}
	if runErr != nil {
		log.Error(fmt.Sprintf("query pipeline failed: %v", runErr))
		return nil, runErr
	}

	result := &schema.QueryResult{
		Answer:    out.Answer,
		Sources:   out.Sources,
		SessionID: sess.ID,
		Metadata: schema.ResponseMetadata{
			SearchStats:          out.Stats,
			ProcessingStages:     out.Stages,
			Contradictions:       out.Contradictions,
			RiskAssessment:       out.Risk,
			TokenUsage:           out.TokenUsage,
			InsufficientEvidence: out.InsufficientEvidence,
		},
	}

	turn := schema.Turn{
		Query:     req.Query,
		ChunkIDs:  out.Evidence.ChunkIDs(),
		Answer:    out.Answer,
		Report:    out.Report,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.AppendTurn(ctx, sess.ID, turn); err != nil {
		// The answer is already computed; losing history must not lose it.
		log.Warn(fmt.Sprintf("failed to record turn: %v", err))
	}

	return result, nil
}

// resolveScope decides which documents the query runs against. Explicit ids
// on the request win and are remembered on the session; otherwise the
// session's remembered scope applies; otherwise every completed document in
// the catalog is searchable.
func (s *QueryService) resolveScope(ctx context.Context, sess *schema.Session, requested []string) ([]string, map[string]string, error) {
	if len(requested) > 0 {
		docs, err := s.catalog.GetByIDs(ctx, requested)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog lookup: %w", err)
		}
		if len(docs) != len(requested) {
			return nil, nil, ErrUnknownDocuments
		}
		if err := s.sessions.SetDocumentScope(ctx, sess.ID, requested); err != nil {
			s.log.WithSession(sess.ID).Warn(fmt.Sprintf("failed to remember document scope: %v", err))
		}
		return requested, documentHints(docs), nil
	}

	if len(sess.DocumentIDs) > 0 {
		docs, err := s.catalog.GetByIDs(ctx, sess.DocumentIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog lookup: %w", err)
		}
		return sess.DocumentIDs, documentHints(docs), nil
	}

	docs, err := s.catalog.ListCompleted(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog listing: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, documentHints(docs), nil
}

func documentHints(docs []*catalog.Document) map[string]string {
	hints := make(map[string]string, len(docs))
	for _, d := range docs {
		hints[d.ID] = d.Filename
	}
	return hints
}

// publishStages hands the stage log to the observer without blocking or
// failing the request.
func (s *QueryService) publishStages(sessionID string, stages []schema.ProcessingStage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.observer.ObserveStages(ctx, sessionID, stages)
	}()
}

// ListSessions returns every live session.
func (s *QueryService) ListSessions(ctx context.Context) ([]*schema.Session, error) {
	return s.sessions.List(ctx)
}

// GetSession returns one session, or nil when the id is unknown.
func (s *QueryService) GetSession(ctx context.Context, id string) (*schema.Session, error) {
	return s.sessions.Get(ctx, id)
}

// DeleteSession removes a session and its history.
func (s *QueryService) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// AnalyzeQuery classifies a query and reports the expansion the retriever
// would apply, without running retrieval.
func (s *QueryService) AnalyzeQuery(query string) (*queryanalysis.Analysis, string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, "", ErrEmptyQuery
	}
	analysis := queryanalysis.Analyze(query)
	expanded := queryanalysis.Expand(analysis, nil)
	return &analysis, expanded, nil
}
