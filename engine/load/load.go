// Package load reads documents from JSON files into the ingestion pipeline.
// A file holds either a single document object or an array of them; unknown
// keys land in the document's metadata.
package load

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
)

// minDocumentChars filters near-empty documents before ingestion.
const minDocumentChars = 50

// wellKnownKeys are mapped to Document fields; everything else is metadata.
var wellKnownKeys = map[string]bool{
	"title":      true,
	"content":    true,
	"source":     true,
	"url":        true,
	"source_url": true,
	"author":     true,
	"metadata":   true,
}

// Loader reads and prepares documents from JSON files.
type Loader struct {
	logger *slog.Logger
}

// New creates a Loader. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// FromFile loads documents from one JSON file: parse, filter, enrich.
func (l *Loader) FromFile(path string) ([]domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.E(domain.CodeDataProcessing, "read "+path, err)
	}
	docs, err := l.Parse(raw)
	if err != nil {
		return nil, domain.E(domain.CodeDataProcessing, "parse "+path, err)
	}
	l.logger.Info("load: file parsed", "path", path, "documents", len(docs))
	return docs, nil
}

// FromFiles loads every file, skipping ones that fail. The aggregate is
// filtered and enriched once at the end.
func (l *Loader) FromFiles(paths []string) []domain.Document {
	var all []domain.Document
	for _, path := range paths {
		docs, err := l.FromFile(path)
		if err != nil {
			l.logger.Error("load: skipping file", "path", path, "error", err)
			continue
		}
		all = append(all, docs...)
	}
	return l.Prepare(all)
}

// Parse decodes a JSON document array or single object.
func (l *Loader) Parse(raw []byte) ([]domain.Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("empty input")
	}

	var items []map[string]any
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	} else {
		var item map[string]any
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		items = []map[string]any{item}
	}

	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		doc, ok := l.parseItem(item)
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *Loader) parseItem(item map[string]any) (domain.Document, bool) {
	content := strings.TrimSpace(str(item, "content"))
	if content == "" {
		l.logger.Warn("load: skipping document with empty content")
		return domain.Document{}, false
	}

	title := str(item, "title")
	if title == "" {
		title = "Untitled Document"
	}

	doc := domain.NewDocument(title, content, domain.ParseSource(str(item, "source")))
	doc.SourceURL = str(item, "url")
	if doc.SourceURL == "" {
		doc.SourceURL = str(item, "source_url")
	}
	doc.Author = str(item, "author")

	if md, ok := item["metadata"].(map[string]any); ok {
		for k, v := range md {
			doc.Metadata[k] = v
		}
	}
	for k, v := range item {
		if !wellKnownKeys[k] {
			doc.Metadata[k] = v
		}
	}
	return doc, true
}

// Prepare filters out documents below the minimum length and enriches the
// survivors with content statistics.
func (l *Loader) Prepare(docs []domain.Document) []domain.Document {
	valid := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if len(strings.TrimSpace(doc.Content)) < minDocumentChars {
			l.logger.Warn("load: skipping short document", "title", doc.Title)
			continue
		}
		doc.Metadata["processed_at"] = doc.CreatedAt.Format(time.RFC3339)
		doc.Metadata["content_length"] = len(doc.Content)
		doc.Metadata["word_count"] = len(strings.Fields(doc.Content))
		valid = append(valid, doc)
	}
	l.logger.Info("load: documents prepared", "valid", len(valid), "total", len(docs))
	return valid
}

func str(item map[string]any, key string) string {
	if v, ok := item[key].(string); ok {
		return v
	}
	return ""
}
