// Package domain defines the core data model for the longevity knowledge
// engine and acts as the validation gate at pipeline entry points.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSource classifies where a document came from.
type DocumentSource string

const (
	SourceResearchPaper     DocumentSource = "research_paper"
	SourcePodcastTranscript DocumentSource = "podcast_transcript"
	SourceBookExcerpt       DocumentSource = "book_excerpt"
	SourceWebsiteContent    DocumentSource = "website_content"
	SourceBlogPost          DocumentSource = "blog_post"
	SourceNewsArticle       DocumentSource = "news_article"
	SourceUnknown           DocumentSource = "unknown"
)

// sourceAliases maps loader input strings to source tags.
var sourceAliases = map[string]DocumentSource{
	"research_paper":     SourceResearchPaper,
	"research":           SourceResearchPaper,
	"paper":              SourceResearchPaper,
	"podcast":            SourcePodcastTranscript,
	"podcast_transcript": SourcePodcastTranscript,
	"book":               SourceBookExcerpt,
	"book_excerpt":       SourceBookExcerpt,
	"website":            SourceWebsiteContent,
	"website_content":    SourceWebsiteContent,
	"web":                SourceWebsiteContent,
	"blog":               SourceBlogPost,
	"blog_post":          SourceBlogPost,
	"news":               SourceNewsArticle,
	"news_article":       SourceNewsArticle,
	"article":            SourceNewsArticle,
}

// ParseSource maps a free-form source string to a DocumentSource tag,
// defaulting to SourceUnknown.
func ParseSource(s string) DocumentSource {
	if src, ok := sourceAliases[s]; ok {
		return src
	}
	return SourceUnknown
}

// MessageRole tags a chat message with its speaker.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one role-tagged message for the generation boundary.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Document is an item of the knowledge base before chunking.
type Document struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Source      DocumentSource `json:"source"`
	SourceURL   string         `json:"source_url,omitempty"`
	Author      string         `json:"author,omitempty"`
	PublishedAt *time.Time     `json:"published_date,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewDocument creates a Document with a fresh identity and timestamps.
func NewDocument(title, content string, source DocumentSource) Document {
	now := time.Now().UTC()
	return Document{
		ID:        uuid.New(),
		Title:     title,
		Content:   content,
		Source:    source,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DocumentChunk is the unit of embedding and retrieval. It references its
// parent document by id, never by pointer, and is immutable once stored.
type DocumentChunk struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"document_id"`
	Content    string         `json:"content"`
	ChunkIndex int            `json:"chunk_index"`
	StartChar  int            `json:"start_char"`
	EndChar    int            `json:"end_char"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RetrievalResult is the read-only projection returned by the vector index
// for one query. It is constructed per request and never persisted.
type RetrievalResult struct {
	ChunkID         string         `json:"id"`
	DocumentID      string         `json:"document_id"`
	Content         string         `json:"content"`
	SimilarityScore float64        `json:"similarity"`
	Source          DocumentSource `json:"source"`
	SourceURL       string         `json:"source_url,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// RAGResponse is the final answer artifact for one query.
type RAGResponse struct {
	ID              uuid.UUID         `json:"id"`
	Query           string            `json:"query"`
	Response        string            `json:"response"`
	RetrievedChunks []RetrievalResult `json:"retrieved_chunks"`
	ModelUsed       string            `json:"model_used"`
	ProcessingTime  time.Duration     `json:"processing_time"`
	Timestamp       time.Time         `json:"timestamp"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

// AvgSimilarity returns the mean similarity of the retrieved chunks, or 0.
func (r *RAGResponse) AvgSimilarity() float64 {
	if len(r.RetrievedChunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range r.RetrievedChunks {
		sum += c.SimilarityScore
	}
	return sum / float64(len(r.RetrievedChunks))
}

// SourcesSummary counts retrieved chunks per source tag.
func (r *RAGResponse) SourcesSummary() map[DocumentSource]int {
	out := make(map[DocumentSource]int)
	for _, c := range r.RetrievedChunks {
		out[c.Source]++
	}
	return out
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	TotalDocuments     int           `json:"total_documents"`
	ProcessedDocuments int           `json:"processed_documents"`
	FailedDocuments    int           `json:"failed_documents"`
	TotalChunks        int           `json:"total_chunks"`
	Duration           time.Duration `json:"duration"`
	Errors             []string      `json:"errors,omitempty"`
}
