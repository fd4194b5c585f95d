package vector

// Hit is a single similarity search result.
type Hit struct {
	ID         string            `json:"id"`
	Score      float32           `json:"score"`
	Content    string            `json:"content"`
	DocumentID string            `json:"document_id"`
	ChunkIndex int               `json:"chunk_index"`
	Source     string            `json:"source"`
	SourceURL  string            `json:"source_url"`
	Meta       map[string]string `json:"meta"`
}

// Record is one embedded chunk to persist.
type Record struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, document_id, chunk_index, start_char, end_char, source, source_url
}

// Stats summarizes the collection.
type Stats struct {
	Collection string `json:"collection"`
	Points     uint64 `json:"points"`
}
