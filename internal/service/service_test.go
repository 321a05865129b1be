package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"LegalMind/internal/catalog"
	"LegalMind/internal/rag/analyzer"
	"LegalMind/internal/rag/budget"
	"LegalMind/internal/rag/compressor"
	"LegalMind/internal/rag/pipeline"
	"LegalMind/internal/rag/queryanalysis"
	"LegalMind/internal/rag/retriever"
	"LegalMind/internal/rag/schema"
	"LegalMind/internal/rag/session/inmemory"
	"LegalMind/pkg/logger"
)

type fakeCatalog struct {
	docs map[string]*catalog.Document
}

func (f *fakeCatalog) ListCompleted(ctx context.Context) ([]*catalog.Document, error) {
	var out []*catalog.Document
	for _, d := range f.docs {
		if d.Status == catalog.StatusCompleted {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetByIDs(ctx context.Context, ids []string) ([]*catalog.Document, error) {
	var out []*catalog.Document
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5}, nil
}

// fakeSearcher records the document scope it was asked to search.
type fakeSearcher struct {
	scopes [][]string
}

func (f *fakeSearcher) Search(ctx context.Context, documentIDs []string, embedding []float32, topK int) ([]schema.RetrievalResult, error) {
	f.scopes = append(f.scopes, append([]string(nil), documentIDs...))
	return []schema.RetrievalResult{{ChunkID: "a1", SimilarityScore: 0.9}}, nil
}

type fakeChunkStore struct{}

func (fakeChunkStore) GetChunks(ctx context.Context, ids []string) (map[string]*schema.Chunk, error) {
	out := make(map[string]*schema.Chunk, len(ids))
	for _, id := range ids {
		out[id] = &schema.Chunk{
			ID:         id,
			DocumentID: "doc-a",
			Text:       "The notice period is 30 days.",
			ChunkType:  schema.ChunkTypeContent,
			TokenCount: 50,
		}
	}
	return out, nil
}

type fakeLLM struct{}

func (fakeLLM) Generate(ctx context.Context, prompt string, maxOutputTokens int) (*schema.Generation, error) {
	return &schema.Generation{Text: "grounded answer", Usage: schema.TokenUsage{TotalTokens: 100}}, nil
}

func newTestService(searcher *fakeSearcher, cat DocumentCatalog) *QueryService {
	log := logger.New("test", "")
	retCfg := retriever.DefaultConfig()
	retCfg.RetryBackoff = time.Millisecond
	ret := retriever.New(fakeEmbedder{}, searcher, fakeChunkStore{}, retCfg, log)
	pipe := pipeline.New(ret, compressor.New(log), analyzer.New(analyzer.Config{}, log), fakeLLM{}, pipeline.Config{
		SynthesisTimeout: time.Second,
		RetryBackoff:     time.Millisecond,
	}, log)
	return NewQueryService(log, inmemory.New(0), cat, pipe, nil, Config{
		ModelName:            "gpt-4o",
		ReservedOutputTokens: 1500,
		SafetyMargin:         0.1,
	})
}

func twoDocCatalog() *fakeCatalog {
	return &fakeCatalog{docs: map[string]*catalog.Document{
		"doc-a": {ID: "doc-a", Filename: "license_agreement.pdf", Status: catalog.StatusCompleted},
		"doc-b": {ID: "doc-b", Filename: "services_contract.pdf", Status: catalog.StatusCompleted},
		"doc-c": {ID: "doc-c", Filename: "pending_upload.pdf", Status: catalog.StatusProcessing},
	}}
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, twoDocCatalog())
	_, err := svc.Query(context.Background(), QueryRequest{})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("error = %v, want ErrEmptyQuery", err)
	}
}

func TestQueryRejectsUnknownDocuments(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, twoDocCatalog())
	_, err := svc.Query(context.Background(), QueryRequest{
		Query:       "notice period?",
		DocumentIDs: []string{"doc-a", "doc-nope"},
	})
	if !errors.Is(err, ErrUnknownDocuments) {
		t.Errorf("error = %v, want ErrUnknownDocuments", err)
	}
}

func TestQueryDefaultsToCompletedDocuments(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestService(searcher, twoDocCatalog())

	res, err := svc.Query(context.Background(), QueryRequest{Query: "what is the notice period"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if res.SessionID == "" {
		t.Error("result carries no session id")
	}
	if len(searcher.scopes) == 0 {
		t.Fatal("search never ran")
	}
	scope := map[string]bool{}
	for _, id := range searcher.scopes[0] {
		scope[id] = true
	}
	if !scope["doc-a"] || !scope["doc-b"] {
		t.Errorf("default scope %v missing completed documents", searcher.scopes[0])
	}
	if scope["doc-c"] {
		t.Error("processing document leaked into the default scope")
	}
}

func TestQueryRemembersScopeOnSession(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := newTestService(searcher, twoDocCatalog())
	ctx := context.Background()

	first, err := svc.Query(ctx, QueryRequest{
		Query:       "termination terms",
		DocumentIDs: []string{"doc-a"},
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	// Follow-up on the same session without explicit ids reuses the scope.
	_, err = svc.Query(ctx, QueryRequest{
		Query:     "and the renewal terms?",
		SessionID: first.SessionID,
	})
	if err != nil {
		t.Fatalf("follow-up Query() error = %v", err)
	}

	last := searcher.scopes[len(searcher.scopes)-1]
	if len(last) != 1 || last[0] != "doc-a" {
		t.Errorf("follow-up scope = %v, want the remembered [doc-a]", last)
	}
}

func TestQueryAppendsTurn(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, twoDocCatalog())
	ctx := context.Background()

	res, err := svc.Query(ctx, QueryRequest{Query: "what is the notice period"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	sess, err := svc.GetSession(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess == nil || len(sess.Turns) != 1 {
		t.Fatalf("session turns = %v, want 1 recorded turn", sess)
	}
	turn := sess.Turns[0]
	if turn.Query != "what is the notice period" || turn.Answer != res.Answer {
		t.Errorf("recorded turn = %+v", turn)
	}
	if len(turn.ChunkIDs) == 0 {
		t.Error("turn records no evidence chunk ids")
	}
}

func TestQueryDetailedModeRecordsReport(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, twoDocCatalog())
	ctx := context.Background()

	res, err := svc.Query(ctx, QueryRequest{
		Query: "what is the notice period",
		Mode:  pipeline.ModeDetailed,
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	sess, err := svc.GetSession(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(sess.Turns) != 1 {
		t.Fatalf("session turns = %d, want 1", len(sess.Turns))
	}
	report := sess.Turns[0].Report
	if report == nil {
		t.Fatal("detailed turn carries no analysis report")
	}
	if report.RiskAssessment.OverallRiskLevel == "" {
		t.Error("report has no risk level")
	}
	if len(report.Stages) == 0 {
		t.Error("report has no processing stages")
	}
	if report.TokenUsage.TotalTokens == 0 {
		t.Error("report has no token accounting")
	}

	// Fast mode stays lightweight: no report on the turn.
	fast, err := svc.Query(ctx, QueryRequest{Query: "renewal terms", SessionID: res.SessionID})
	if err != nil {
		t.Fatalf("fast Query() error = %v", err)
	}
	sess, err = svc.GetSession(ctx, fast.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if last := sess.Turns[len(sess.Turns)-1]; last.Report != nil {
		t.Error("fast turn unexpectedly carries an analysis report")
	}
}

func TestQueryBudgetMatchesAllocator(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, twoDocCatalog())

	want, err := budget.Allocate("gpt-4o", 1500, 0.1)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if want <= 0 {
		t.Fatalf("allocator budget = %d", want)
	}

	// The pipeline receives the allocator's figure; a successful run is the
	// observable contract here.
	if _, err := svc.Query(context.Background(), QueryRequest{Query: "liability cap"}); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
}

func TestAnalyzeQuery(t *testing.T) {
	svc := newTestService(&fakeSearcher{}, twoDocCatalog())

	analysis, expanded, err := svc.AnalyzeQuery("Can the licensee terminate the agreement?")
	if err != nil {
		t.Fatalf("AnalyzeQuery() error = %v", err)
	}
	if analysis.Intent != queryanalysis.IntentPermission {
		t.Errorf("Intent = %q, want %q", analysis.Intent, queryanalysis.IntentPermission)
	}
	if expanded == "" {
		t.Error("no expansion produced")
	}

	if _, _, err := svc.AnalyzeQuery(""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("empty query error = %v, want ErrEmptyQuery", err)
	}
}
