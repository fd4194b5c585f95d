package rag

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/prompt"
)

// AskOptions override the service defaults for one query.
type AskOptions struct {
	// TopK overrides the configured retrieval depth when > 0.
	TopK int
	// Threshold overrides the configured similarity floor when > 0.
	Threshold float64
	// Filters restricts retrieval to matching chunk payload fields,
	// e.g. {"source": "research_paper"}.
	Filters map[string]string
}

// Answer runs the full pipeline for a query: retrieve supporting chunks,
// assemble a topic-aware prompt and generate the answer. A query with no
// relevant chunks still gets an answer; the prompt says the knowledge base
// had nothing.
func (s *Service) Answer(ctx context.Context, query string, opts AskOptions) (*domain.RAGResponse, error) {
	if query == "" {
		return nil, domain.E(domain.CodeValidation, "query is empty", nil)
	}
	start := time.Now()

	results, err := s.retriever.Retrieve(ctx, query, RetrieveOpts{
		TopK:      opts.TopK,
		Threshold: opts.Threshold,
		Filters:   opts.Filters,
	})
	if err != nil {
		return nil, err
	}

	text, topic := prompt.ForQuery(query, results)
	answer, err := s.generator.Generate(ctx, text)
	if err != nil {
		return nil, domain.E(domain.CodeLLM, "generate answer", err)
	}

	elapsed := time.Since(start)
	s.queriesTotal.Inc()
	s.queryTime.Observe(elapsed.Seconds())
	s.logger.Info("rag: answered",
		"topic", topic,
		"chunks", len(results),
		"duration", elapsed,
		"model", s.generator.Model())

	return &domain.RAGResponse{
		ID:              uuid.New(),
		Query:           query,
		Response:        answer,
		RetrievedChunks: results,
		ModelUsed:       s.generator.Model(),
		ProcessingTime:  elapsed,
		Timestamp:       time.Now().UTC(),
		Metadata: map[string]any{
			"topic":          string(topic),
			"prompt_length":  len(text),
			"context_chunks": len(results),
		},
	}, nil
}
