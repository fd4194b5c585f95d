// Command worker consumes queued documents from NATS and ingests them into
// Qdrant and Neo4j, retrying failures and dead-lettering the hopeless ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ruthiel/longevity-ai-app/engine/catalog"
	"github.com/ruthiel/longevity-ai-app/engine/chunk"
	"github.com/ruthiel/longevity-ai-app/engine/config"
	"github.com/ruthiel/longevity-ai-app/engine/ingest"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
	"github.com/ruthiel/longevity-ai-app/pkg/metrics"
	"github.com/ruthiel/longevity-ai-app/pkg/openai"
)

func main() {
	metricsPort := flag.Int("metrics-port", 9091, "port for /metrics and /healthz")
	drainDLQ := flag.Int("drain-dlq", 0, "drain up to N dead-letter messages, print them, and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *drainDLQ > 0 {
		if err := drain(cfg, *drainDLQ); err != nil {
			logger.Error("dlq drain failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, *metricsPort, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

// drain pulls dead-lettered documents off the queue and prints one line per
// failure, for inspecting why documents never made it into the index.
func drain(cfg config.Config, max int) error {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName+"-dlq-drain"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	entries, err := ingest.DrainDLQ(nc, max)
	if err != nil {
		return fmt.Errorf("drain dlq: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("dead-letter queue is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Println(e)
	}
	return nil
}

func run(cfg config.Config, metricsPort int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()
	if err := store.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName+"-worker"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	reg := metrics.New()
	chunker := chunk.New(chunk.Options{
		ChunkSize:       cfg.ChunkSize,
		Overlap:         cfg.ChunkOverlap,
		MaxChunksPerDoc: cfg.MaxChunksPerDoc,
		MinChunkChars:   chunk.DefaultOptions().MinChunkChars,
		MinAlnumChars:   chunk.DefaultOptions().MinAlnumChars,
	}, logger)
	svc := rag.New(embedder, store, noGenerator{}, catalog.New(driver), chunker, rag.Options{
		TopK:                cfg.TopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}, reg, logger)

	consumer := ingest.NewConsumer(nc, svc, logger)
	sub, err := consumer.Start()
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()
	logger.Info("worker consuming", "subject", ingest.DocumentSubject)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		if nc.Status() != nats.CONNECTED {
			http.Error(w, "nats disconnected", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok\n"))
	})
	go func() {
		addr := fmt.Sprintf(":%d", metricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

// noGenerator satisfies rag.Generator; the worker never answers queries.
type noGenerator struct{}

func (noGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("generation not available in the worker")
}
func (noGenerator) Model() string                    { return "none" }
func (noGenerator) HealthCheck(context.Context) bool { return false }
