package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ruthiel/longevity-ai-app/engine/catalog"
	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/load"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/metrics"
)

type stubRAG struct {
	answer    *domain.RAGResponse
	answerErr error
	ingested  []domain.Document
	report    domain.IngestReport
}

func (s *stubRAG) Answer(_ context.Context, query string, _ rag.AskOptions) (*domain.RAGResponse, error) {
	if s.answerErr != nil {
		return nil, s.answerErr
	}
	resp := *s.answer
	resp.Query = query
	return &resp, nil
}

func (s *stubRAG) Ingest(_ context.Context, docs []domain.Document) domain.IngestReport {
	s.ingested = append(s.ingested, docs...)
	s.report.TotalDocuments = len(docs)
	return s.report
}

type stubCatalog struct {
	entries []catalog.Entry
	deleted []string
	healthy bool
}

func (s *stubCatalog) List(context.Context, int) ([]catalog.Entry, error) { return s.entries, nil }
func (s *stubCatalog) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubCatalog) BySource(context.Context) ([]catalog.SourceStats, error) {
	return []catalog.SourceStats{{Source: "blog_post", Documents: 2, Chunks: 7}}, nil
}
func (s *stubCatalog) HealthCheck(context.Context) bool { return s.healthy }

type stubIndex struct {
	deleted []string
	healthy bool
}

func (s *stubIndex) Stats(context.Context) (vector.Stats, error) {
	return vector.Stats{Collection: "longevity_knowledge", Points: 42}, nil
}
func (s *stubIndex) DeleteByDocument(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *stubIndex) HealthCheck(context.Context) bool { return s.healthy }

type stubLLM struct{ healthy bool }

func (s stubLLM) HealthCheck(context.Context) bool { return s.healthy }

func newTestServer(svc *stubRAG, cat *stubCatalog, index *stubIndex, llm stubLLM) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	srv := newServer(svc, cat, index, llm, nil, load.New(logger), logger)
	return srv.routes(metrics.New())
}

func healthyStubs() (*stubRAG, *stubCatalog, *stubIndex, stubLLM) {
	resp := &domain.RAGResponse{
		ID:             uuid.New(),
		Response:       "Strength training preserves muscle mass.",
		ModelUsed:      "gpt-4o-mini",
		ProcessingTime: 1200 * time.Millisecond,
		Timestamp:      time.Now().UTC(),
		RetrievedChunks: []domain.RetrievalResult{
			{ChunkID: "c1", Content: "resistance training", SimilarityScore: 0.9},
		},
	}
	return &stubRAG{answer: resp}, &stubCatalog{healthy: true}, &stubIndex{healthy: true}, stubLLM{healthy: true}
}

func TestAsk(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ask",
		strings.NewReader(`{"query":"does exercise extend lifespan?"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Query != "does exercise extend lifespan?" {
		t.Errorf("query = %q", got.Query)
	}
	if got.AvgSimilarity != 0.9 {
		t.Errorf("avg similarity = %g", got.AvgSimilarity)
	}
	if got.ProcessingTime != 1.2 {
		t.Errorf("processing time = %g", got.ProcessingTime)
	}
}

func TestAskValidationErrorIs400(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	svc.answerErr = domain.E(domain.CodeValidation, "query must not be empty", nil)
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"query":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "validation_error") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAskUpstreamErrorIs502(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	svc.answerErr = domain.E(domain.CodeLLM, "completion failed", nil)
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"query":"q"}`)))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestDocuments(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	svc.report = domain.IngestReport{ProcessedDocuments: 1, TotalChunks: 3}
	h := newTestServer(svc, cat, index, llm)

	body := `[{"title":"Sleep","content":"` + strings.Repeat("sleep matters. ", 10) + `","source":"blog"}]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(svc.ingested) != 1 {
		t.Fatalf("ingested %d docs", len(svc.ingested))
	}
	if svc.ingested[0].Source != domain.SourceBlogPost {
		t.Errorf("source = %s", svc.ingested[0].Source)
	}
}

func TestIngestRejectsEmptyBatch(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	// Content below the loader minimum is filtered out.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents",
		strings.NewReader(`[{"title":"Thin","content":"too short","source":"blog"}]`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestBadJSON(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/documents", strings.NewReader(`{broken`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListDocuments(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	cat.entries = []catalog.Entry{{ID: "d1", Title: "Fasting"}}
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/documents?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Fasting") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/documents?limit=9999", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized limit status = %d", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/documents/doc-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(index.deleted) != 1 || index.deleted[0] != "doc-1" {
		t.Errorf("index deletions = %v", index.deleted)
	}
	if len(cat.deleted) != 1 || cat.deleted[0] != "doc-1" {
		t.Errorf("catalog deletions = %v", cat.deleted)
	}
}

func TestStats(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"points":42`) || !strings.Contains(body, "blog_post") {
		t.Errorf("body = %s", body)
	}
}

func TestHealth(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	index.healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"vector_index":false`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	svc, cat, index, llm := healthyStubs()
	h := newTestServer(svc, cat, index, llm)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
