// Package config builds the engine configuration from the environment.
// The Config value is constructed once and passed explicitly into every
// component constructor; there is no ambient singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every knob of the engine and its application layer.
type Config struct {
	AppName     string
	Environment string // development, staging, production, testing
	LogLevel    string

	APIPort string

	// OpenAI-compatible upstream.
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	Model           string
	EmbeddingModel  string
	Temperature     float64
	MaxTokens       int

	// Embeddings.
	EmbeddingDims   int
	EmbedBatchSize  int
	EmbedBatchDelay time.Duration

	// Chunking.
	ChunkSize       int
	ChunkOverlap    int
	MaxChunksPerDoc int

	// Retrieval.
	TopK                int
	SimilarityThreshold float64
	MaxContextChars     int

	// Vector index.
	QdrantAddr       string
	QdrantCollection string

	// Document catalog.
	Neo4jURI  string
	Neo4jUser string
	Neo4jPass string

	// Async ingestion.
	NATSURL string

	// Retry policy for all external boundaries.
	RetryMaxAttempts int
	RetryInitialWait time.Duration
	RetryMaxWait     time.Duration
}

var validEnvironments = map[string]bool{
	"development": true, "staging": true, "production": true, "testing": true,
}

// Default returns the configuration defaults, before env overrides.
func Default() Config {
	return Config{
		AppName:             "longevity-ai",
		Environment:         "development",
		LogLevel:            "info",
		APIPort:             "8000",
		OpenAIBaseURL:       "https://api.openai.com/v1",
		Model:               "gpt-4o-mini",
		EmbeddingModel:      "text-embedding-3-small",
		Temperature:         0.7,
		MaxTokens:           1000,
		EmbeddingDims:       1536,
		EmbedBatchSize:      100,
		EmbedBatchDelay:     time.Second,
		ChunkSize:           1000,
		ChunkOverlap:        200,
		MaxChunksPerDoc:     50,
		TopK:                5,
		SimilarityThreshold: 0.7,
		MaxContextChars:     4000,
		QdrantAddr:          "localhost:6334",
		QdrantCollection:    "longevity_knowledge",
		Neo4jURI:            "neo4j://localhost:7687",
		Neo4jUser:           "neo4j",
		Neo4jPass:           "password",
		NATSURL:             "nats://localhost:4222",
		RetryMaxAttempts:    3,
		RetryInitialWait:    4 * time.Second,
		RetryMaxWait:        10 * time.Second,
	}
}

// FromEnv builds a Config from environment variables on top of Default,
// then validates it.
func FromEnv() (Config, error) {
	c := Default()

	c.AppName = envOr("APP_NAME", c.AppName)
	c.Environment = envOr("ENVIRONMENT", c.Environment)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.APIPort = envOr("API_PORT", c.APIPort)

	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.Model = envOr("OPENAI_MODEL", c.Model)
	c.EmbeddingModel = envOr("OPENAI_EMBEDDING_MODEL", c.EmbeddingModel)

	var err error
	if c.Temperature, err = envFloat("OPENAI_TEMPERATURE", c.Temperature); err != nil {
		return c, err
	}
	if c.MaxTokens, err = envInt("OPENAI_MAX_TOKENS", c.MaxTokens); err != nil {
		return c, err
	}
	if c.EmbeddingDims, err = envInt("EMBEDDING_DIMENSIONS", c.EmbeddingDims); err != nil {
		return c, err
	}
	if c.EmbedBatchSize, err = envInt("EMBED_BATCH_SIZE", c.EmbedBatchSize); err != nil {
		return c, err
	}
	if c.EmbedBatchDelay, err = envDuration("EMBED_BATCH_DELAY", c.EmbedBatchDelay); err != nil {
		return c, err
	}
	if c.ChunkSize, err = envInt("CHUNK_SIZE", c.ChunkSize); err != nil {
		return c, err
	}
	if c.ChunkOverlap, err = envInt("CHUNK_OVERLAP", c.ChunkOverlap); err != nil {
		return c, err
	}
	if c.MaxChunksPerDoc, err = envInt("MAX_CHUNKS_PER_DOC", c.MaxChunksPerDoc); err != nil {
		return c, err
	}
	if c.TopK, err = envInt("DEFAULT_TOP_K", c.TopK); err != nil {
		return c, err
	}
	if c.SimilarityThreshold, err = envFloat("SIMILARITY_THRESHOLD", c.SimilarityThreshold); err != nil {
		return c, err
	}
	if c.MaxContextChars, err = envInt("MAX_CONTEXT_LENGTH", c.MaxContextChars); err != nil {
		return c, err
	}
	if c.RetryMaxAttempts, err = envInt("RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts); err != nil {
		return c, err
	}
	if c.RetryInitialWait, err = envDuration("RETRY_INITIAL_WAIT", c.RetryInitialWait); err != nil {
		return c, err
	}
	if c.RetryMaxWait, err = envDuration("RETRY_MAX_WAIT", c.RetryMaxWait); err != nil {
		return c, err
	}

	c.QdrantAddr = envOr("QDRANT_ADDR", c.QdrantAddr)
	c.QdrantCollection = envOr("QDRANT_COLLECTION", c.QdrantCollection)
	c.Neo4jURI = envOr("NEO4J_URI", c.Neo4jURI)
	c.Neo4jUser = envOr("NEO4J_USER", c.Neo4jUser)
	c.Neo4jPass = envOr("NEO4J_PASS", c.Neo4jPass)
	c.NATSURL = envOr("NATS_URL", c.NATSURL)

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks cross-field invariants.
func (c Config) Validate() error {
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("config: unknown environment %q", c.Environment)
	}
	if c.ChunkSize < 100 || c.ChunkSize > 4000 {
		return fmt.Errorf("config: chunk size %d out of range [100,4000]", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: chunk overlap %d must be in [0, chunk size)", c.ChunkOverlap)
	}
	if c.MaxChunksPerDoc < 1 {
		return fmt.Errorf("config: max chunks per doc must be positive, got %d", c.MaxChunksPerDoc)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("config: similarity threshold %g out of [0,1]", c.SimilarityThreshold)
	}
	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("config: top_k %d out of range [1,20]", c.TopK)
	}
	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("config: embedding dimensions must be positive, got %d", c.EmbeddingDims)
	}
	if c.EmbedBatchSize < 1 {
		return fmt.Errorf("config: embed batch size must be positive, got %d", c.EmbedBatchSize)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: retry attempts must be positive, got %d", c.RetryMaxAttempts)
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c Config) IsProduction() bool { return c.Environment == "production" }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
