// Package main implements the longevity knowledge API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ruthiel/longevity-ai-app/engine/catalog"
	"github.com/ruthiel/longevity-ai-app/engine/chunk"
	"github.com/ruthiel/longevity-ai-app/engine/config"
	"github.com/ruthiel/longevity-ai-app/engine/load"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
	"github.com/ruthiel/longevity-ai-app/pkg/metrics"
	"github.com/ruthiel/longevity-ai-app/pkg/mid"
	"github.com/ruthiel/longevity-ai-app/pkg/openai"
	"github.com/ruthiel/longevity-ai-app/pkg/resilience"
)

// maxRequestBody caps document upload payloads. Documents themselves are
// capped at 100k characters; this leaves room for batches.
const maxRequestBody = 8 << 20

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retry := fn.RetryOpts{
		MaxAttempts: cfg.RetryMaxAttempts,
		InitialWait: cfg.RetryInitialWait,
		MaxWait:     cfg.RetryMaxWait,
		Jitter:      true,
	}

	// --- OpenAI clients ---
	client := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, logger)
	embedder := openai.NewEmbedder(client, openai.EmbedOpts{
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDims,
		BatchSize:  cfg.EmbedBatchSize,
		BatchDelay: cfg.EmbedBatchDelay,
		Retry:      retry,
	})
	generator := openai.NewGenerator(client, openai.ChatOpts{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Retry:       retry,
	}, resilience.NewBreaker(resilience.DefaultBreakerOpts))

	// --- Qdrant ---
	store, err := vector.New(cfg.QdrantAddr, cfg.QdrantCollection, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()
	if err := store.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	// --- Neo4j document catalog ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)
	cat := catalog.New(driver)

	// --- NATS (optional; sync ingestion still works without it) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName+"-api"))
		if err != nil {
			logger.Warn("nats unavailable, async ingestion disabled", "err", err)
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	// --- RAG service ---
	reg := metrics.New()
	chunker := chunk.New(chunk.Options{
		ChunkSize:       cfg.ChunkSize,
		Overlap:         cfg.ChunkOverlap,
		MaxChunksPerDoc: cfg.MaxChunksPerDoc,
		MinChunkChars:   chunk.DefaultOptions().MinChunkChars,
		MinAlnumChars:   chunk.DefaultOptions().MinAlnumChars,
	}, logger)
	svc := rag.New(embedder, store, generator, cat, chunker, rag.Options{
		TopK:                cfg.TopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}, reg, logger)

	srv := newServer(svc, cat, store, generator, nc, load.New(logger), logger)

	handler := mid.Chain(srv.routes(reg),
		mid.Recover(logger),
		mid.OTel(cfg.AppName),
		mid.Logger(logger),
		mid.Instrument(reg),
		mid.CORS("*"),
		mid.MaxBytes(maxRequestBody),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.APIPort, "environment", cfg.Environment)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
