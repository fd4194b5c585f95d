package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/ruthiel/longevity-ai-app/engine/chunk"
	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/engine/vector"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func (e stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, _ := e.Embed(ctx, []string{text})
	return vecs[0], nil
}

func (stubEmbedder) Dimensions() int { return 4 }

type stubIndex struct {
	mu      sync.Mutex
	upserts int
}

func (s *stubIndex) Upsert(context.Context, []vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	return nil
}

func (s *stubIndex) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *stubIndex) Search(context.Context, []float32, int, float32, map[string]string) ([]vector.Hit, error) {
	return nil, nil
}
func (s *stubIndex) DeleteByDocument(context.Context, string) error { return nil }
func (s *stubIndex) Stats(context.Context) (vector.Stats, error)    { return vector.Stats{}, nil }
func (s *stubIndex) HealthCheck(context.Context) bool               { return true }

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string) (string, error) { return "", nil }
func (stubGenerator) Model() string                                    { return "test" }
func (stubGenerator) HealthCheck(context.Context) bool                 { return true }

func newTestConsumer(t *testing.T, nc *nats.Conn) (*Consumer, *stubIndex) {
	t.Helper()
	index := &stubIndex{}
	logger := slog.New(slog.DiscardHandler)
	chunker := chunk.New(chunk.DefaultOptions(), logger)
	svc := rag.New(stubEmbedder{}, index, stubGenerator{}, nil, chunker, rag.DefaultOptions(), nil, logger)
	return NewConsumer(nc, svc, logger), index
}

func TestConsumerIngestsDocument(t *testing.T) {
	nc := startTestNATS(t)
	consumer, index := newTestConsumer(t, nc)

	sub, err := consumer.Start()
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	doc := domain.NewDocument("Valid", strings.Repeat("healthy habits compound over decades. ", 20), domain.SourceBlogPost)
	if err := PublishDocument(context.Background(), nc, doc); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for index.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if index.count() != 1 {
		t.Fatalf("upserts = %d, want 1", index.count())
	}
}

func TestConsumerDeadLettersAfterRetries(t *testing.T) {
	nc := startTestNATS(t)
	consumer, index := newTestConsumer(t, nc)

	dlqCh := make(chan *nats.Msg, 1)
	dlqSub, err := nc.ChanSubscribe(DLQSubject, dlqCh)
	if err != nil {
		t.Fatal(err)
	}
	defer dlqSub.Unsubscribe()

	sub, err := consumer.Start()
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	// Too short to chunk: fails validation every attempt.
	doc := domain.NewDocument("Broken", "tiny", domain.SourceBlogPost)
	if err := PublishDocument(context.Background(), nc, doc); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-dlqCh:
		var dlq dlqMessage
		if err := json.Unmarshal(msg.Data, &dlq); err != nil {
			t.Fatal(err)
		}
		if dlq.Document.ID != doc.ID {
			t.Errorf("dlq document = %s", dlq.Document.ID)
		}
		if dlq.Retries != MaxRetries {
			t.Errorf("retries = %d, want %d", dlq.Retries, MaxRetries)
		}
		if dlq.Error == "" {
			t.Error("dlq error empty")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("document never reached the DLQ")
	}

	if index.count() != 0 {
		t.Errorf("failed document reached the index %d times", index.count())
	}
}

func TestDrainDLQ(t *testing.T) {
	nc := startTestNATS(t)

	docA := domain.NewDocument("A", "content", domain.SourceBlogPost)
	docB := domain.NewDocument("B", "content", domain.SourceBlogPost)
	go func() {
		time.Sleep(100 * time.Millisecond)
		for _, d := range []domain.Document{docA, docB} {
			data, _ := json.Marshal(dlqMessage{Document: d, Error: "no valid chunks produced", Retries: MaxRetries})
			nc.Publish(DLQSubject, data)
		}
	}()

	entries, err := DrainDLQ(nc, 2)
	if err != nil {
		t.Fatalf("DrainDLQ: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !strings.Contains(entries[0], docA.ID.String()) || !strings.Contains(entries[0], "retries=3") {
		t.Errorf("entry = %q", entries[0])
	}
}
