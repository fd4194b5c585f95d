// Package chunk splits cleaned document text into overlapping chunks with
// recoverable character offsets, and validates them before they reach the
// vector index.
package chunk

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
)

// Options configures the chunker.
type Options struct {
	ChunkSize       int
	Overlap         int
	MaxChunksPerDoc int
	MinChunkChars   int
	MinAlnumChars   int
}

// DefaultOptions returns the production chunking policy.
func DefaultOptions() Options {
	return Options{
		ChunkSize:       1000,
		Overlap:         200,
		MaxChunksPerDoc: 50,
		MinChunkChars:   20,
		MinAlnumChars:   10,
	}
}

// Chunker turns documents into validated, offset-annotated chunks.
type Chunker struct {
	opts     Options
	splitter *Splitter
	logger   *slog.Logger
}

// New creates a Chunker. A nil logger falls back to slog.Default.
func New(opts Options, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		opts:     opts,
		splitter: NewSplitter(opts.ChunkSize, opts.Overlap),
		logger:   logger,
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs to single spaces and trims the ends.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Chunk splits a document into ordered chunks with character offsets into
// the cleaned content. Offsets are recovered by searching forward from just
// before the previous chunk's end (overlap included); when the search fails
// the previous end position is reused as a documented fallback rather than
// an error.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.DocumentChunk, error) {
	cleaned := CleanText(doc.Content)
	if cleaned == "" {
		return nil, domain.E(domain.CodeDataProcessing, "document has no content after cleaning", nil).
			WithDetail("document_id", doc.ID.String())
	}

	texts := c.splitter.Split(cleaned)
	now := time.Now().UTC()
	chunks := make([]domain.DocumentChunk, 0, len(texts))
	prevEnd := 0

	for i, text := range texts {
		from := prevEnd - c.opts.Overlap
		if from < 0 {
			from = 0
		}
		start := prevEnd
		if idx := strings.Index(cleaned[from:], text); idx >= 0 {
			start = from + idx
		} else {
			c.logger.Warn("chunk: offset recovery failed, reusing previous position",
				"document_id", doc.ID, "chunk_index", i)
		}
		end := start + len(text)

		chunks = append(chunks, domain.DocumentChunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Content:    text,
			ChunkIndex: i,
			StartChar:  start,
			EndChar:    end,
			Metadata: map[string]any{
				"document_title":  doc.Title,
				"document_source": string(doc.Source),
				"chunk_length":    len(text),
			},
			CreatedAt: now,
		})
		prevEnd = end
	}

	if len(chunks) > c.opts.MaxChunksPerDoc {
		c.logger.Warn("chunk: document exceeds chunk ceiling, truncating",
			"document_id", doc.ID,
			"chunks", len(chunks),
			"ceiling", c.opts.MaxChunksPerDoc)
		chunks = chunks[:c.opts.MaxChunksPerDoc]
	}

	return chunks, nil
}

// Validate filters out chunks that are malformed, too short, or carry too
// little alphanumeric content to be worth indexing.
func (c *Chunker) Validate(chunks []domain.DocumentChunk) []domain.DocumentChunk {
	return fn.Filter(chunks, func(ch domain.DocumentChunk) bool {
		if !c.isValid(ch) {
			c.logger.Debug("chunk: dropping invalid chunk",
				"document_id", ch.DocumentID, "chunk_index", ch.ChunkIndex)
			return false
		}
		return true
	})
}

func (c *Chunker) isValid(ch domain.DocumentChunk) bool {
	if err := domain.ValidateChunk(ch); err != nil {
		c.logger.Warn("chunk: structural validation failed",
			"document_id", ch.DocumentID, "chunk_index", ch.ChunkIndex, "error", err)
		return false
	}
	if len(strings.TrimSpace(ch.Content)) < c.opts.MinChunkChars {
		return false
	}
	alnum := 0
	for _, r := range ch.Content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return alnum >= c.opts.MinAlnumChars
}
