// Package catalog tracks ingested documents in Neo4j: which documents exist,
// where they came from and how many chunks each produced. The vector index
// holds the chunks; the catalog answers bookkeeping queries about documents.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
)

// ResultCursor is the slice of a Neo4j result the catalog iterates.
type ResultCursor interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// CypherSession is the subset of neo4j.SessionWithContext the catalog uses.
// Tests substitute a mock.
type CypherSession interface {
	Run(ctx context.Context, cypher string, params map[string]any) (ResultCursor, error)
	Close(ctx context.Context) error
}

// SessionOpener opens a session per call.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o driverOpener) OpenSession(ctx context.Context) CypherSession {
	return driverSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s driverSession) Run(ctx context.Context, cypher string, params map[string]any) (ResultCursor, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

// Entry is a catalog record for one ingested document.
type Entry struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	SourceURL  string    `json:"source_url,omitempty"`
	Author     string    `json:"author,omitempty"`
	Chunks     int64     `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// SourceStats counts documents and chunks per source type.
type SourceStats struct {
	Source    string `json:"source"`
	Documents int64  `json:"documents"`
	Chunks    int64  `json:"chunks"`
}

// Catalog provides document bookkeeping on Neo4j.
type Catalog struct {
	opener SessionOpener
}

// New creates a Catalog backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Catalog {
	return &Catalog{opener: driverOpener{driver: driver}}
}

// NewWithOpener creates a Catalog with a custom session opener. Used by tests.
func NewWithOpener(opener SessionOpener) *Catalog {
	return &Catalog{opener: opener}
}

// Save records a document and its chunk count, replacing any previous entry
// with the same id.
func (c *Catalog) Save(ctx context.Context, doc domain.Document, chunks int) error {
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (d:Document {id: $id})
	           SET d.title = $title, d.source = $source, d.source_url = $sourceURL,
	               d.author = $author, d.chunks = $chunks, d.ingested_at = $ingestedAt`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":         doc.ID.String(),
		"title":      doc.Title,
		"source":     string(doc.Source),
		"sourceURL":  doc.SourceURL,
		"author":     doc.Author,
		"chunks":     int64(chunks),
		"ingestedAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("catalog: save document %s: %w", doc.ID, err)
	}
	return nil
}

// Exists reports whether a document id is already cataloged. Used to skip
// re-ingesting duplicates.
func (c *Catalog) Exists(ctx context.Context, id string) (bool, error) {
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (d:Document {id: $id}) RETURN count(d) AS count`,
		map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("catalog: exists %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return false, nil
	}
	count, _ := result.Record().Get("count")
	n, ok := count.(int64)
	return ok && n > 0, nil
}

// Get returns the catalog entry for a document id.
func (c *Catalog) Get(ctx context.Context, id string) (Entry, error) {
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (d:Document {id: $id})
		 RETURN d.id AS id, d.title AS title, d.source AS source, d.source_url AS source_url,
		        d.author AS author, d.chunks AS chunks, d.ingested_at AS ingested_at`,
		map[string]any{"id": id})
	if err != nil {
		return Entry{}, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	if !result.Next(ctx) {
		return Entry{}, fmt.Errorf("catalog: document %s not found", id)
	}
	return entryFromRecord(result.Record()), nil
}

// List returns catalog entries, newest first.
func (c *Catalog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (d:Document)
		 RETURN d.id AS id, d.title AS title, d.source AS source, d.source_url AS source_url,
		        d.author AS author, d.chunks AS chunks, d.ingested_at AS ingested_at
		 ORDER BY d.ingested_at DESC LIMIT $limit`,
		map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	var entries []Entry
	for result.Next(ctx) {
		entries = append(entries, entryFromRecord(result.Record()))
	}
	return entries, nil
}

// Delete removes a document's catalog entry.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `MATCH (d:Document {id: $id}) DETACH DELETE d`,
		map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	return nil
}

// BySource returns per-source document and chunk counts.
func (c *Catalog) BySource(ctx context.Context) ([]SourceStats, error) {
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (d:Document)
		 RETURN d.source AS source, count(*) AS documents, sum(d.chunks) AS chunks
		 ORDER BY documents DESC`, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: stats by source: %w", err)
	}
	var stats []SourceStats
	for result.Next(ctx) {
		rec := result.Record()
		s := SourceStats{}
		if v, ok := rec.Get("source"); ok {
			if sv, ok := v.(string); ok {
				s.Source = sv
			}
		}
		if v, ok := rec.Get("documents"); ok {
			if n, ok := v.(int64); ok {
				s.Documents = n
			}
		}
		if v, ok := rec.Get("chunks"); ok {
			if n, ok := v.(int64); ok {
				s.Chunks = n
			}
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// HealthCheck reports whether Neo4j answers a trivial query.
func (c *Catalog) HealthCheck(ctx context.Context) bool {
	sess := c.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.Run(ctx, `RETURN 1`, nil)
	return err == nil
}

func entryFromRecord(rec *neo4j.Record) Entry {
	e := Entry{}
	e.ID = strField(rec, "id")
	e.Title = strField(rec, "title")
	e.Source = strField(rec, "source")
	e.SourceURL = strField(rec, "source_url")
	e.Author = strField(rec, "author")
	if v, ok := rec.Get("chunks"); ok {
		if n, ok := v.(int64); ok {
			e.Chunks = n
		}
	}
	if v, ok := rec.Get("ingested_at"); ok {
		switch at := v.(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, at); err == nil {
				e.IngestedAt = t
			}
		case time.Time:
			e.IngestedAt = at
		}
	}
	return e
}

func strField(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
