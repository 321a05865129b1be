package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"LegalMind/internal/catalog"
	"LegalMind/internal/rag/analyzer"
	"LegalMind/internal/rag/compressor"
	"LegalMind/internal/rag/pipeline"
	"LegalMind/internal/rag/retriever"
	"LegalMind/internal/rag/schema"
	"LegalMind/internal/rag/session/inmemory"
	"LegalMind/internal/service"
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

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, documentIDs []string, embedding []float32, topK int) ([]schema.RetrievalResult, error) {
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

func newTestRouter(t *testing.T) (*gin.Engine, *service.QueryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("test", "")
	retCfg := retriever.DefaultConfig()
	retCfg.RetryBackoff = time.Millisecond
	ret := retriever.New(fakeEmbedder{}, fakeSearcher{}, fakeChunkStore{}, retCfg, log)
	pipe := pipeline.New(ret, compressor.New(log), analyzer.New(analyzer.Config{}, log), fakeLLM{}, pipeline.Config{
		SynthesisTimeout: time.Second,
		RetryBackoff:     time.Millisecond,
	}, log)
	cat := &fakeCatalog{docs: map[string]*catalog.Document{
		"doc-a": {ID: "doc-a", Filename: "license_agreement.pdf", Status: catalog.StatusCompleted},
	}}
	svc := service.NewQueryService(log, inmemory.New(0), cat, pipe, nil, service.Config{
		ModelName:            "gpt-4o",
		ReservedOutputTokens: 1500,
		SafetyMargin:         0.1,
	})

	router := gin.New()
	RegisterRoutes(router, NewAPI(svc, log))
	return router, svc
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQueryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/chat/query", gin.H{
		"query": "what is the notice period",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result schema.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Answer == "" {
		t.Error("empty answer")
	}
	if result.SessionID == "" {
		t.Error("missing session id")
	}
	var synthesized bool
	for _, stage := range result.Metadata.ProcessingStages {
		if stage.StageName == schema.StageSynthesis && stage.Success {
			synthesized = true
		}
	}
	if !synthesized {
		t.Errorf("no successful synthesis stage in %+v", result.Metadata.ProcessingStages)
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/chat/query", gin.H{"query": "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestQueryEndpointRejectsUnknownDocuments(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/chat/query", gin.H{
		"query":        "termination",
		"document_ids": []string{"doc-missing"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestQueryEndpointRejectsMalformedPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/query", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/chat/query", gin.H{
		"query": "what is the notice period",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d", w.Code)
	}
	var result schema.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// Listing shows the session created by the query.
	w = doJSON(t, router, http.MethodGet, "/api/chat/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listed struct {
		Sessions []schema.Session `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Sessions) != 1 || listed.Sessions[0].ID != result.SessionID {
		t.Errorf("sessions = %+v, want the query session", listed.Sessions)
	}

	// Message history carries the recorded turn.
	w = doJSON(t, router, http.MethodGet, "/api/chat/sessions/"+result.SessionID+"/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("messages status = %d", w.Code)
	}
	var history struct {
		SessionID string        `json:"session_id"`
		Turns     []schema.Turn `json:"turns"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Turns) != 1 || history.Turns[0].Answer != result.Answer {
		t.Errorf("turns = %+v", history.Turns)
	}

	// Deleting then fetching yields 404.
	w = doJSON(t, router, http.MethodDelete, "/api/chat/sessions/"+result.SessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/chat/sessions/"+result.SessionID+"/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", w.Code)
	}
}

func TestSessionMessagesUnknownID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/chat/sessions/never-seen/messages", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAnalyzeQueryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/chat/analyze-query", gin.H{
		"query": "Can the licensee terminate the agreement?",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var analysis struct {
		OriginalQuery string   `json:"original_query"`
		Intent        string   `json:"intent"`
		KeyTerms      []string `json:"key_terms"`
		ExpandedQuery string   `json:"expanded_query"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if analysis.Intent == "" || analysis.ExpandedQuery == "" {
		t.Errorf("analysis = %+v", analysis)
	}

	w = doJSON(t, router, http.MethodPost, "/api/chat/analyze-query", gin.H{"query": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
