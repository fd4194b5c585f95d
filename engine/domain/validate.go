package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxContentChars bounds a single document's content.
	MaxContentChars = 100_000
	// MaxTitleChars bounds a document title.
	MaxTitleChars = 500
)

// validEmbeddingDims are the embedding sizes the index accepts.
var validEmbeddingDims = map[int]bool{1536: true, 3072: true}

// Sentinel errors for validation failures.
var (
	ErrEmptyContent     = errors.New("content is empty")
	ErrContentTooLong   = errors.New("content exceeds maximum length")
	ErrTitleTooLong     = errors.New("title exceeds maximum length")
	ErrBadSourceURL     = errors.New("source URL must start with http:// or https://")
	ErrBadCharRange     = errors.New("end_char must be greater than start_char")
	ErrBadEmbeddingDims = errors.New("invalid embedding dimension")
)

// ValidationErr wraps a sentinel with the offending field and value.
type ValidationErr struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationErr) Error() string {
	return fmt.Sprintf("validation: %s: %v (value=%q)", e.Field, e.Wrapped, e.Value)
}

func (e *ValidationErr) Unwrap() error { return e.Wrapped }

func invalid(field, value string, wrapped error) error {
	return &ValidationErr{Field: field, Value: value, Wrapped: wrapped}
}

func truncateForError(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// ValidateDocument checks a document before it enters the pipeline.
func ValidateDocument(d Document) error {
	if strings.TrimSpace(d.Content) == "" {
		return invalid("content", "", ErrEmptyContent)
	}
	if len(d.Content) > MaxContentChars {
		return invalid("content", fmt.Sprintf("%d chars", len(d.Content)), ErrContentTooLong)
	}
	if len(d.Title) > MaxTitleChars {
		return invalid("title", truncateForError(d.Title), ErrTitleTooLong)
	}
	if d.SourceURL != "" && !strings.HasPrefix(d.SourceURL, "http://") && !strings.HasPrefix(d.SourceURL, "https://") {
		return invalid("source_url", d.SourceURL, ErrBadSourceURL)
	}
	return nil
}

// ValidateChunk checks structural invariants of a chunk.
func ValidateChunk(c DocumentChunk) error {
	if strings.TrimSpace(c.Content) == "" {
		return invalid("content", "", ErrEmptyContent)
	}
	if c.EndChar <= c.StartChar {
		return invalid("end_char", fmt.Sprintf("%d..%d", c.StartChar, c.EndChar), ErrBadCharRange)
	}
	if c.Embedding != nil && !validEmbeddingDims[len(c.Embedding)] {
		return invalid("embedding", fmt.Sprintf("%d dims", len(c.Embedding)), ErrBadEmbeddingDims)
	}
	return nil
}
