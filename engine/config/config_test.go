package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad environment", func(c *Config) { c.Environment = "prod" }, "environment"},
		{"overlap >= size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "overlap"},
		{"chunk size too small", func(c *Config) { c.ChunkSize = 50 }, "chunk size"},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }, "threshold"},
		{"top_k zero", func(c *Config) { c.TopK = 0 }, "top_k"},
		{"zero dims", func(c *Config) { c.EmbeddingDims = 0 }, "dimensions"},
		{"zero batch", func(c *Config) { c.EmbedBatchSize = 0 }, "batch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "100")
	t.Setenv("SIMILARITY_THRESHOLD", "0.6")
	t.Setenv("EMBED_BATCH_DELAY", "250ms")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.Environment != "testing" {
		t.Errorf("environment: %s", c.Environment)
	}
	if c.ChunkSize != 500 || c.ChunkOverlap != 100 {
		t.Errorf("chunking: %d/%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.SimilarityThreshold != 0.6 {
		t.Errorf("threshold: %g", c.SimilarityThreshold)
	}
	if c.EmbedBatchDelay != 250*time.Millisecond {
		t.Errorf("batch delay: %s", c.EmbedBatchDelay)
	}
}

func TestFromEnv_BadValue(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFromEnv_InvalidCombination(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "300")
	t.Setenv("CHUNK_OVERLAP", "400")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected validation error for overlap >= size")
	}
}
