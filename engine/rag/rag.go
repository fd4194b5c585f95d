// Package rag orchestrates the retrieval-augmented answering pipeline: embed
// the query, search the vector index, assemble a topic-aware prompt and call
// the LLM. It also owns document ingestion into the index.
package rag

import (
	"context"

	"github.com/ruthiel/longevity-ai-app/engine/vector"
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// VectorIndex is the similarity store for embedded chunks.
type VectorIndex interface {
	Upsert(ctx context.Context, records []vector.Record) error
	Search(ctx context.Context, embedding []float32, topK int, threshold float32, filters map[string]string) ([]vector.Hit, error)
	DeleteByDocument(ctx context.Context, docID string) error
	Stats(ctx context.Context) (vector.Stats, error)
	HealthCheck(ctx context.Context) bool
}

// Generator produces the final answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
	HealthCheck(ctx context.Context) bool
}
