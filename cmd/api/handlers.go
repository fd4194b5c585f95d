package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ruthiel/longevity-ai-app/engine/catalog"
	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/ingest"
	"github.com/ruthiel/longevity-ai-app/engine/load"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/metrics"
)

// ragService is the slice of rag.Service the handlers need.
type ragService interface {
	Answer(ctx context.Context, query string, opts rag.AskOptions) (*domain.RAGResponse, error)
	Ingest(ctx context.Context, docs []domain.Document) domain.IngestReport
}

// cataloger is the slice of catalog.Catalog the handlers need.
type cataloger interface {
	List(ctx context.Context, limit int) ([]catalog.Entry, error)
	Delete(ctx context.Context, id string) error
	BySource(ctx context.Context) ([]catalog.SourceStats, error)
	HealthCheck(ctx context.Context) bool
}

// indexer is the slice of vector.Store the handlers need.
type indexer interface {
	Stats(ctx context.Context) (vector.Stats, error)
	DeleteByDocument(ctx context.Context, docID string) error
	HealthCheck(ctx context.Context) bool
}

type healthChecker interface {
	HealthCheck(ctx context.Context) bool
}

type server struct {
	svc    ragService
	cat    cataloger
	index  indexer
	llm    healthChecker
	nc     *nats.Conn
	loader *load.Loader
	logger *slog.Logger
}

func newServer(svc ragService, cat cataloger, index indexer, llm healthChecker, nc *nats.Conn, loader *load.Loader, logger *slog.Logger) *server {
	return &server{svc: svc, cat: cat, index: index, llm: llm, nc: nc, loader: loader, logger: logger}
}

func (s *server) routes(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/documents", s.handleIngest)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.Handle("GET /metrics", reg.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine error codes onto HTTP statuses and serializes the
// AppError shape; unknown errors become opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	var app *domain.AppError
	if !errors.As(err, &app) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal_error"})
		return
	}
	status := http.StatusInternalServerError
	switch app.Code {
	case domain.CodeValidation:
		status = http.StatusBadRequest
	case domain.CodeRetrieval, domain.CodeVectorStore, domain.CodeEmbedding, domain.CodeLLM:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, app.ToMap())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	components := map[string]bool{
		"vector_index": s.index.HealthCheck(ctx),
		"catalog":      s.cat.HealthCheck(ctx),
		"llm":          s.llm.HealthCheck(ctx),
	}
	if s.nc != nil {
		components["nats"] = s.nc.Status() == nats.CONNECTED
	}

	status, code := "ok", http.StatusOK
	for _, up := range components {
		if !up {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, map[string]any{"status": status, "components": components})
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	Query     string            `json:"query"`
	TopK      int               `json:"top_k,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	ID              string                   `json:"id"`
	Query           string                   `json:"query"`
	Response        string                   `json:"response"`
	RetrievedChunks []domain.RetrievalResult `json:"retrieved_chunks"`
	ModelUsed       string                   `json:"model_used"`
	ProcessingTime  float64                  `json:"processing_time"`
	AvgSimilarity   float64                  `json:"avg_similarity"`
	Timestamp       time.Time                `json:"timestamp"`
	Metadata        map[string]any           `json:"metadata,omitempty"`
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	resp, err := s.svc.Answer(r.Context(), req.Query, rag.AskOptions{
		TopK:      req.TopK,
		Threshold: req.Threshold,
		Filters:   req.Filters,
	})
	if err != nil {
		s.logger.Error("answer failed", "query", req.Query, "err", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		ID:              resp.ID.String(),
		Query:           resp.Query,
		Response:        resp.Response,
		RetrievedChunks: resp.RetrievedChunks,
		ModelUsed:       resp.ModelUsed,
		ProcessingTime:  resp.ProcessingTime.Seconds(),
		AvgSimilarity:   resp.AvgSimilarity(),
		Timestamp:       resp.Timestamp,
		Metadata:        resp.Metadata,
	})
}

// handleIngest accepts one document or an array of documents in the loader
// format. With ?async=true and NATS available the documents are queued
// instead of processed inline.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	docs, err := s.loader.Parse(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	docs = s.loader.Prepare(docs)
	if len(docs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no ingestible documents in request"})
		return
	}

	if r.URL.Query().Get("async") == "true" && s.nc != nil {
		queued := 0
		for _, doc := range docs {
			if err := ingest.PublishDocument(r.Context(), s.nc, doc); err != nil {
				s.logger.Error("queue document failed", "document_id", doc.ID, "err", err)
				continue
			}
			queued++
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued})
		return
	}

	report := s.svc.Ingest(r.Context(), docs)
	status := http.StatusOK
	if report.ProcessedDocuments == 0 && report.FailedDocuments > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}

func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be in [1,500]"})
			return
		}
		limit = n
	}

	entries, err := s.cat.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list documents failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": entries, "count": len(entries)})
}

// handleDeleteDocument removes a document from both the vector index and
// the catalog.
func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing document id"})
		return
	}

	if err := s.index.DeleteByDocument(r.Context(), id); err != nil {
		s.logger.Error("delete from index failed", "document_id", id, "err", err)
		writeError(w, err)
		return
	}
	if err := s.cat.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete from catalog failed", "document_id", id, "err", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.index.Stats(r.Context())
	if err != nil {
		s.logger.Error("index stats failed", "err", err)
		writeError(w, err)
		return
	}
	sources, err := s.cat.BySource(r.Context())
	if err != nil {
		s.logger.Error("catalog stats failed", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": stats.Collection,
		"points":     stats.Points,
		"sources":    sources,
	})
}
