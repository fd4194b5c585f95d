package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
)

// Retriever finds the chunks most similar to a query.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	// threshold is the minimum cosine similarity a hit must reach.
	threshold float64
	logger    *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, index VectorIndex, topK int, threshold float64, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// RetrieveOpts override the retriever's configured defaults for one call.
// Zero values keep the defaults.
type RetrieveOpts struct {
	TopK      int
	Threshold float64
	Filters   map[string]string
}

// Retrieve embeds the query and searches the index. Results come back in
// descending similarity order; an empty slice means nothing cleared the
// threshold and is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrieveOpts) ([]domain.RetrievalResult, error) {
	topK := r.topK
	if opts.TopK > 0 {
		topK = opts.TopK
	}
	threshold := r.threshold
	if opts.Threshold > 0 {
		threshold = opts.Threshold
	}

	embedding, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, domain.E(domain.CodeRetrieval, "embed query", err)
	}

	hits, err := r.index.Search(ctx, embedding, topK, float32(threshold), opts.Filters)
	if err != nil {
		return nil, domain.E(domain.CodeRetrieval, "vector search", err)
	}

	r.logger.Debug("retrieve: search done",
		"query_len", len(query), "hits", len(hits), "top_k", topK)
	return fn.Map(hits, toRetrievalResult), nil
}

func toRetrievalResult(h vector.Hit) domain.RetrievalResult {
	meta := make(map[string]any, len(h.Meta)+1)
	for k, v := range h.Meta {
		meta[k] = v
	}
	meta["chunk_index"] = h.ChunkIndex
	return domain.RetrievalResult{
		ChunkID:         h.ID,
		DocumentID:      h.DocumentID,
		Content:         h.Content,
		SimilarityScore: float64(h.Score),
		Source:          domain.ParseSource(h.Source),
		SourceURL:       h.SourceURL,
		Metadata:        meta,
	}
}

// String describes the retriever configuration, for startup logging.
func (r *Retriever) String() string {
	return fmt.Sprintf("retriever(top_k=%d threshold=%.2f)", r.topK, r.threshold)
}
