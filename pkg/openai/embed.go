package openai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ruthiel/longevity-ai-app/pkg/fn"
)

// EmbedOpts tunes the embedding client.
type EmbedOpts struct {
	Model      string
	Dimensions int
	BatchSize  int
	// BatchDelay paces consecutive batch requests.
	BatchDelay time.Duration
	Retry      fn.RetryOpts
}

// DefaultEmbedOpts matches the production ingestion settings.
func DefaultEmbedOpts() EmbedOpts {
	return EmbedOpts{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		BatchSize:  100,
		BatchDelay: time.Second,
		Retry:      fn.DefaultRetry,
	}
}

// Embedder produces embedding vectors through the OpenAI embeddings API.
type Embedder struct {
	client  *Client
	opts    EmbedOpts
	limiter *rate.Limiter
}

// NewEmbedder creates an Embedder paced to one batch per BatchDelay.
func NewEmbedder(client *Client, opts EmbedOpts) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	limit := rate.Inf
	if opts.BatchDelay > 0 {
		limit = rate.Every(opts.BatchDelay)
	}
	return &Embedder{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Dimensions reports the configured vector width.
func (e *Embedder) Dimensions() int { return e.opts.Dimensions }

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed returns one vector per input text, in input order. Batches are sent
// sequentially with pacing and per-batch retry; any batch failing after
// retries fails the whole call, so callers never see partial results.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for bi, batch := range fn.Chunk(texts, e.opts.BatchSize) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		res := fn.Retry(ctx, e.opts.Retry, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(e.embedBatch(ctx, batch))
		})
		vecs, err := res.Unwrap()
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", bi, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedOne embeds a single text, typically a query.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var resp embedResponse
	err := e.client.post(ctx, "/embeddings", embedRequest{
		Model:      e.opts.Model,
		Input:      batch,
		Dimensions: e.opts.Dimensions,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
	}

	// The API documents index-annotated results; order by index rather than
	// trusting response position.
	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		if e.opts.Dimensions > 0 && len(d.Embedding) != e.opts.Dimensions {
			return nil, fmt.Errorf("embeddings: got %d dimensions, want %d", len(d.Embedding), e.opts.Dimensions)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embeddings: missing vector for input %d", i)
		}
	}

	e.client.logger.Debug("openai: embedded batch",
		"inputs", len(batch), "tokens", resp.Usage.TotalTokens)
	return vecs, nil
}
