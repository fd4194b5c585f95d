package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/ruthiel/longevity-ai-app/engine/chunk"
	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
	"github.com/ruthiel/longevity-ai-app/pkg/metrics"
)

// Catalog records which documents have been ingested.
type Catalog interface {
	Save(ctx context.Context, doc domain.Document, chunks int) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK                int
	SimilarityThreshold float64
	// ReplaceExisting re-ingests documents already in the catalog by first
	// dropping their chunks from the index.
	ReplaceExisting bool
}

// DefaultOptions returns the production retrieval settings.
func DefaultOptions() Options {
	return Options{
		TopK:                5,
		SimilarityThreshold: 0.7,
	}
}

// Service is the RAG orchestration service.
type Service struct {
	embedder  Embedder
	index     VectorIndex
	generator Generator
	catalog   Catalog
	chunker   *chunk.Chunker
	retriever *Retriever
	opts      Options
	logger    *slog.Logger

	docsIngested *metrics.Counter
	docsFailed   *metrics.Counter
	chunksStored *metrics.Counter
	queriesTotal *metrics.Counter
	queryTime    *metrics.Histogram
}

// New creates a Service. catalog may be nil, which disables dedup and
// document bookkeeping; reg may be nil to skip metrics.
func New(embedder Embedder, index VectorIndex, generator Generator, cat Catalog, chunker *chunk.Chunker, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		embedder:  embedder,
		index:     index,
		generator: generator,
		catalog:   cat,
		chunker:   chunker,
		retriever: NewRetriever(embedder, index, opts.TopK, opts.SimilarityThreshold, logger),
		opts:      opts,
		logger:    logger,

		docsIngested: reg.Counter("ingest_documents_total", "Documents ingested successfully"),
		docsFailed:   reg.Counter("ingest_documents_failed_total", "Documents that failed ingestion"),
		chunksStored: reg.Counter("ingest_chunks_total", "Chunks stored in the vector index"),
		queriesTotal: reg.Counter("rag_queries_total", "RAG queries answered"),
		queryTime:    reg.Histogram("rag_query_seconds", "End-to-end query latency", []float64{0.1, 0.5, 1, 2, 5, 10, 30}),
	}
}

// Retriever exposes the service's retriever for direct search endpoints.
func (s *Service) Retriever() *Retriever { return s.retriever }

type chunkedDoc struct {
	doc    domain.Document
	chunks []domain.DocumentChunk
}

type embeddedDoc struct {
	doc    domain.Document
	chunks []domain.DocumentChunk
}

// ingestPipeline builds the per-document stage chain:
// validate → chunk → embed → store.
func (s *Service) ingestPipeline() fn.Stage[domain.Document, int] {
	validate := fn.Traced("ingest.validate", func(_ context.Context, doc domain.Document) fn.Result[domain.Document] {
		if err := domain.ValidateDocument(doc); err != nil {
			return fn.Err[domain.Document](domain.E(domain.CodeValidation, "validate document", err))
		}
		return fn.Ok(doc)
	})

	split := fn.Traced("ingest.chunk", func(_ context.Context, doc domain.Document) fn.Result[chunkedDoc] {
		chunks, err := s.chunker.Chunk(doc)
		if err != nil {
			return fn.Err[chunkedDoc](err)
		}
		chunks = s.chunker.Validate(chunks)
		if len(chunks) == 0 {
			return fn.Err[chunkedDoc](domain.E(domain.CodeDataProcessing, "no valid chunks produced", nil).
				WithDetail("document_id", doc.ID.String()))
		}
		return fn.Ok(chunkedDoc{doc: doc, chunks: chunks})
	})

	embed := fn.Traced("ingest.embed", func(ctx context.Context, cd chunkedDoc) fn.Result[embeddedDoc] {
		texts := fn.Map(cd.chunks, func(c domain.DocumentChunk) string { return c.Content })
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fn.Err[embeddedDoc](domain.E(domain.CodeEmbedding, "embed chunks", err))
		}
		for i := range cd.chunks {
			cd.chunks[i].Embedding = vecs[i]
		}
		return fn.Ok(embeddedDoc{doc: cd.doc, chunks: cd.chunks})
	})

	observe := fn.Tap(func(_ context.Context, cd chunkedDoc) {
		s.logger.Debug("ingest: document chunked",
			"document_id", cd.doc.ID, "chunks", len(cd.chunks))
	})

	store := fn.Traced("ingest.store", func(ctx context.Context, ed embeddedDoc) fn.Result[int] {
		records := fn.Map(ed.chunks, func(c domain.DocumentChunk) vector.Record {
			return vector.Record{
				ID:        c.ID.String(),
				Embedding: c.Embedding,
				Payload:   chunkPayload(ed.doc, c),
			}
		})
		if err := s.index.Upsert(ctx, records); err != nil {
			return fn.Err[int](domain.E(domain.CodeVectorStore, "upsert chunks", err))
		}
		if s.catalog != nil {
			if err := s.catalog.Save(ctx, ed.doc, len(ed.chunks)); err != nil {
				// The chunks are already searchable; a catalog miss is not
				// worth failing the document over.
				s.logger.Warn("ingest: catalog save failed",
					"document_id", ed.doc.ID, "error", err)
			}
		}
		return fn.Ok(len(ed.chunks))
	})

	return fn.Then(fn.Then(fn.Then(fn.Then(validate, split), observe), embed), store)
}

// Ingest runs documents through the pipeline sequentially. One document
// failing does not stop the rest; per-document errors are collected in the
// report.
func (s *Service) Ingest(ctx context.Context, docs []domain.Document) domain.IngestReport {
	start := time.Now()
	pipeline := s.ingestPipeline()
	report := domain.IngestReport{TotalDocuments: len(docs)}

	for _, doc := range docs {
		if skip, err := s.checkExisting(ctx, doc); err != nil {
			s.logger.Warn("ingest: dedup check failed", "document_id", doc.ID, "error", err)
		} else if skip {
			s.logger.Info("ingest: skipping duplicate", "document_id", doc.ID, "title", doc.Title)
			continue
		}

		chunks, err := pipeline(ctx, doc).Unwrap()
		if err != nil {
			report.FailedDocuments++
			report.Errors = append(report.Errors, doc.ID.String()+": "+err.Error())
			s.docsFailed.Inc()
			s.logger.Error("ingest: document failed",
				"document_id", doc.ID, "title", doc.Title, "error", err)
			continue
		}

		report.ProcessedDocuments++
		report.TotalChunks += chunks
		s.docsIngested.Inc()
		s.chunksStored.Add(int64(chunks))
		s.logger.Info("ingest: document stored",
			"document_id", doc.ID, "title", doc.Title, "chunks", chunks)

		if ctx.Err() != nil {
			break
		}
	}

	report.Duration = time.Since(start)
	return report
}

// checkExisting reports whether the document should be skipped, dropping its
// old chunks when replacement is enabled.
func (s *Service) checkExisting(ctx context.Context, doc domain.Document) (bool, error) {
	if s.catalog == nil {
		return false, nil
	}
	exists, err := s.catalog.Exists(ctx, doc.ID.String())
	if err != nil || !exists {
		return false, err
	}
	if !s.opts.ReplaceExisting {
		return true, nil
	}
	if err := s.index.DeleteByDocument(ctx, doc.ID.String()); err != nil {
		return false, err
	}
	return false, nil
}

func chunkPayload(doc domain.Document, c domain.DocumentChunk) map[string]any {
	payload := map[string]any{
		"content":     c.Content,
		"document_id": doc.ID.String(),
		"chunk_index": c.ChunkIndex,
		"start_char":  c.StartChar,
		"end_char":    c.EndChar,
		"source":      string(doc.Source),
		"source_url":  doc.SourceURL,
	}
	for k, v := range c.Metadata {
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	return payload
}
