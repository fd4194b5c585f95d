// Package ingest consumes documents from NATS and runs them through the RAG
// ingestion pipeline, with bounded retries and a dead letter queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/engine/rag"
	"github.com/ruthiel/longevity-ai-app/pkg/natsutil"
)

const (
	// DocumentSubject carries documents waiting to be ingested.
	DocumentSubject = "longevity.ingest.document"
	// DLQSubject receives documents that exhausted their retries.
	DLQSubject = "longevity.ingest.dlq"
	// MaxRetries before a document goes to the DLQ.
	MaxRetries = 3
	// retryHeader tracks how many times a message has been requeued.
	retryHeader = "X-Retry-Count"
)

// dlqMessage wraps a failed document with its terminal error.
type dlqMessage struct {
	Document domain.Document `json:"document"`
	Error    string          `json:"error"`
	Retries  int             `json:"retries"`
}

// Consumer subscribes to the document subject and feeds the RAG service.
type Consumer struct {
	nc     *nats.Conn
	svc    *rag.Service
	logger *slog.Logger
}

// NewConsumer creates a Consumer. A nil logger falls back to slog.Default.
func NewConsumer(nc *nats.Conn, svc *rag.Service, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{nc: nc, svc: svc, logger: logger}
}

// Start subscribes to DocumentSubject. Each message carries one document;
// failures are requeued with an incremented retry header until MaxRetries,
// then published to the DLQ.
func (c *Consumer) Start() (*nats.Subscription, error) {
	return natsutil.Subscribe(c.nc, DocumentSubject, func(ctx context.Context, doc domain.Document, msg *nats.Msg) {
		report := c.svc.Ingest(ctx, []domain.Document{doc})
		if report.FailedDocuments == 0 {
			c.logger.Info("ingest: document consumed",
				"document_id", doc.ID, "chunks", report.TotalChunks)
			return
		}

		retries := retryCount(msg) + 1
		errText := "ingest failed"
		if len(report.Errors) > 0 {
			errText = report.Errors[0]
		}
		c.logger.Error("ingest: document failed",
			"document_id", doc.ID, "retry", retries, "error", errText)

		if retries >= MaxRetries {
			c.toDLQ(ctx, doc, errText, retries)
			return
		}

		headers := nats.Header{}
		headers.Set(retryHeader, strconv.Itoa(retries))
		if err := natsutil.PublishMsg(ctx, c.nc, DocumentSubject, doc, headers); err != nil {
			c.logger.Error("ingest: retry publish failed", "document_id", doc.ID, "error", err)
		}
	})
}

func (c *Consumer) toDLQ(ctx context.Context, doc domain.Document, errText string, retries int) {
	err := natsutil.Publish(ctx, c.nc, DLQSubject, dlqMessage{
		Document: doc,
		Error:    errText,
		Retries:  retries,
	})
	if err != nil {
		c.logger.Error("ingest: DLQ publish failed", "document_id", doc.ID, "error", err)
		return
	}
	c.logger.Warn("ingest: document dead-lettered", "document_id", doc.ID, "retries", retries)
}

// PublishDocument enqueues one document for asynchronous ingestion.
func PublishDocument(ctx context.Context, nc *nats.Conn, doc domain.Document) error {
	if err := natsutil.Publish(ctx, nc, DocumentSubject, doc); err != nil {
		return fmt.Errorf("ingest: publish document %s: %w", doc.ID, err)
	}
	return nil
}

// DrainDLQ reads DLQ messages into a slice until the subscription times
// out. Used by operational tooling to inspect failures.
func DrainDLQ(nc *nats.Conn, max int) ([]string, error) {
	sub, err := nc.SubscribeSync(DLQSubject)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	var out []string
	for len(out) < max {
		msg, err := sub.NextMsg(nats.DefaultTimeout)
		if err != nil {
			break
		}
		var dlq dlqMessage
		if json.Unmarshal(msg.Data, &dlq) != nil {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s (retries=%d)", dlq.Document.ID, dlq.Error, dlq.Retries))
	}
	return out, nil
}

func retryCount(msg *nats.Msg) int {
	if msg.Header == nil {
		return 0
	}
	n, _ := strconv.Atoi(msg.Header.Get(retryHeader))
	return n
}
