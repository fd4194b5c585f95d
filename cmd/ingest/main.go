// Command ingest loads knowledge base JSON files and runs them through the
// ingestion pipeline into Qdrant and Neo4j, either inline or by queueing
// them for the worker over NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ruthiel/longevity-ai-app/engine/catalog"
	"github.com/ruthiel/longevity-ai-app/engine/chunk"
	"github.com/ruthiel/longevity-ai-app/engine/config"
	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/ingest"
	"github.com/ruthiel/longevity-ai-app/engine/load"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
	"github.com/ruthiel/longevity-ai-app/pkg/openai"
)

func main() {
	var (
		dir     = flag.String("dir", "", "ingest every *.json file in this directory")
		async   = flag.Bool("async", false, "queue documents over NATS instead of ingesting inline")
		replace = flag.Bool("replace", false, "re-ingest documents that already exist in the catalog")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	paths := flag.Args()
	if *dir != "" {
		globbed, err := filepath.Glob(filepath.Join(*dir, "*.json"))
		if err != nil {
			logger.Error("bad directory glob", "dir", *dir, "err", err)
			os.Exit(1)
		}
		paths = append(paths, globbed...)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [-dir DIR] [-async] [-replace] [file.json ...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs := load.New(logger).FromFiles(paths)
	if len(docs) == 0 {
		logger.Error("no ingestible documents found", "files", len(paths))
		os.Exit(1)
	}
	logger.Info("documents loaded", "files", len(paths), "documents", len(docs))

	if *async {
		if err := queue(ctx, cfg, docs, logger); err != nil {
			logger.Error("queueing failed", "err", err)
			os.Exit(1)
		}
		return
	}

	report, err := run(ctx, cfg, docs, *replace, logger)
	if err != nil {
		logger.Error("ingestion failed", "err", err)
		os.Exit(1)
	}

	logger.Info("ingestion finished",
		"total", report.TotalDocuments,
		"processed", report.ProcessedDocuments,
		"failed", report.FailedDocuments,
		"chunks", report.TotalChunks,
		"duration", report.Duration,
	)
	for _, e := range report.Errors {
		logger.Warn("document error", "detail", e)
	}
	if report.FailedDocuments > 0 {
		os.Exit(1)
	}
}

// queue publishes each document to the worker's ingestion subject.
func queue(ctx context.Context, cfg config.Config, docs []domain.Document, logger *slog.Logger) error {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName+"-ingest"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	for _, doc := range docs {
		if err := ingest.PublishDocument(ctx, nc, doc); err != nil {
			return err
		}
	}
	logger.Info("documents queued", "count", len(docs))
	return nil
}

// run ingests the documents inline against Qdrant and Neo4j.
func run(ctx context.Context, cfg config.Config, docs []domain.Document, replace bool, logger *slog.Logger) (domain.IngestReport, error) {
	var report domain.IngestReport

	client := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, logger)
	embedder := openai.NewEmbedder(client, openai.EmbedOpts{
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDims,
		BatchSize:  cfg.EmbedBatchSize,
		BatchDelay: cfg.EmbedBatchDelay,
		Retry: fn.RetryOpts{
			MaxAttempts: cfg.RetryMaxAttempts,
			InitialWait: cfg.RetryInitialWait,
			MaxWait:     cfg.RetryMaxWait,
			Jitter:      true,
		},
	})

	store, err := vector.New(cfg.QdrantAddr, cfg.QdrantCollection, logger)
	if err != nil {
		return report, fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()
	if err := store.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return report, fmt.Errorf("ensure collection: %w", err)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return report, fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	chunker := chunk.New(chunk.Options{
		ChunkSize:       cfg.ChunkSize,
		Overlap:         cfg.ChunkOverlap,
		MaxChunksPerDoc: cfg.MaxChunksPerDoc,
		MinChunkChars:   chunk.DefaultOptions().MinChunkChars,
		MinAlnumChars:   chunk.DefaultOptions().MinAlnumChars,
	}, logger)

	// Generation is not needed for ingestion; the service only calls the
	// generator when answering.
	svc := rag.New(embedder, store, noGenerator{}, catalog.New(driver), chunker, rag.Options{
		TopK:                cfg.TopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
		ReplaceExisting:     replace,
	}, nil, logger)

	return svc.Ingest(ctx, docs), nil
}

// noGenerator satisfies rag.Generator for ingest-only runs.
type noGenerator struct{}

func (noGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("generation not available in ingest mode")
}
func (noGenerator) Model() string                    { return "none" }
func (noGenerator) HealthCheck(context.Context) bool { return false }
