package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidateDocument_Valid(t *testing.T) {
	doc := NewDocument("Sleep and longevity", "Good sleep extends healthspan.", SourceResearchPaper)
	if err := ValidateDocument(doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDocument_EmptyContent(t *testing.T) {
	doc := NewDocument("t", "   ", SourceUnknown)
	err := ValidateDocument(doc)
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestValidateDocument_ContentTooLong(t *testing.T) {
	doc := NewDocument("t", strings.Repeat("a", MaxContentChars+1), SourceUnknown)
	if err := ValidateDocument(doc); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
}

func TestValidateDocument_BadURL(t *testing.T) {
	doc := NewDocument("t", "content", SourceBlogPost)
	doc.SourceURL = "ftp://example.com"
	if err := ValidateDocument(doc); !errors.Is(err, ErrBadSourceURL) {
		t.Fatalf("expected ErrBadSourceURL, got %v", err)
	}
	doc.SourceURL = "https://example.com/post"
	if err := ValidateDocument(doc); err != nil {
		t.Fatalf("https URL should pass: %v", err)
	}
}

func TestValidateChunk(t *testing.T) {
	chunk := DocumentChunk{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		Content:    "some chunk text",
		StartChar:  10,
		EndChar:    25,
	}
	if err := ValidateChunk(chunk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunk.EndChar = 10
	if err := ValidateChunk(chunk); !errors.Is(err, ErrBadCharRange) {
		t.Fatalf("expected ErrBadCharRange, got %v", err)
	}

	chunk.EndChar = 25
	chunk.Embedding = make([]float32, 12)
	if err := ValidateChunk(chunk); !errors.Is(err, ErrBadEmbeddingDims) {
		t.Fatalf("expected ErrBadEmbeddingDims, got %v", err)
	}

	chunk.Embedding = make([]float32, 1536)
	if err := ValidateChunk(chunk); err != nil {
		t.Fatalf("1536-dim embedding should pass: %v", err)
	}
}

func TestParseSource(t *testing.T) {
	cases := map[string]DocumentSource{
		"research_paper": SourceResearchPaper,
		"paper":          SourceResearchPaper,
		"podcast":        SourcePodcastTranscript,
		"blog":           SourceBlogPost,
		"article":        SourceNewsArticle,
		"whatever":       SourceUnknown,
		"":               SourceUnknown,
	}
	for in, want := range cases {
		if got := ParseSource(in); got != want {
			t.Errorf("ParseSource(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestAppError(t *testing.T) {
	cause := errors.New("connection refused")
	err := E(CodeEmbedding, "embed batch failed", cause).WithDetail("batch", 2)

	if !errors.Is(err, cause) {
		t.Error("AppError should unwrap to its cause")
	}
	if CodeOf(err) != CodeEmbedding {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}
	m := err.ToMap()
	if m["error"] != "embedding_error" {
		t.Errorf("ToMap error field: %v", m["error"])
	}
	if m["details"].(map[string]any)["batch"] != 2 {
		t.Errorf("ToMap details: %v", m["details"])
	}
}

func TestRAGResponseHelpers(t *testing.T) {
	resp := &RAGResponse{
		RetrievedChunks: []RetrievalResult{
			{SimilarityScore: 0.9, Source: SourceResearchPaper},
			{SimilarityScore: 0.7, Source: SourceResearchPaper},
			{SimilarityScore: 0.8, Source: SourceBlogPost},
		},
	}
	if avg := resp.AvgSimilarity(); avg < 0.799 || avg > 0.801 {
		t.Errorf("avg similarity: %f", avg)
	}
	sum := resp.SourcesSummary()
	if sum[SourceResearchPaper] != 2 || sum[SourceBlogPost] != 1 {
		t.Errorf("sources summary: %v", sum)
	}

	empty := &RAGResponse{}
	if empty.AvgSimilarity() != 0 {
		t.Error("empty response should average 0")
	}
}
