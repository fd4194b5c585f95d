// Package vector owns all Qdrant operations: collection lifecycle, chunk
// upserts and similarity search over the embedded knowledge base.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ruthiel/longevity-ai-app/pkg/fn"
)

// upsertBatchSize bounds a single upsert request.
const upsertBatchSize = 100

var storeRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// Store is the sole owner of the Qdrant collection.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *slog.Logger
}

// New connects to Qdrant at the given gRPC address.
func New(addr, collection string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vector: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		logger:      logger,
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the cosine-distance collection if missing.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vector: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector: create collection %s: %w", s.collection, err)
	}
	s.logger.Info("vector: created collection", "collection", s.collection, "dims", dims)
	return nil
}

// DropCollection deletes the collection and its points.
func (s *Store) DropCollection(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("vector: drop collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores records in batches. Each batch is written atomically with
// wait semantics; a failed batch fails the call after retries.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	wait := true
	for bi, batch := range fn.Chunk(records, upsertBatchSize) {
		points := fn.Map(batch, toPoint)
		err := fn.RetryOp(ctx, storeRetry, func(ctx context.Context) error {
			_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
				CollectionName: s.collection,
				Wait:           &wait,
				Points:         points,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("vector: upsert batch %d (%d points): %w", bi, len(batch), err)
		}
	}
	return nil
}

// Delete removes points by id.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := fn.Map(ids, func(id string) *pb.PointId {
		return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	})
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector: delete %d points: %w", len(ids), err)
	}
	return nil
}

// DeleteByDocument removes all points belonging to a document. Used for
// re-ingestion.
func (s *Store) DeleteByDocument(ctx context.Context, docID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch("document_id", docID)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector: delete by document %s: %w", docID, err)
	}
	return nil
}

// Search runs k-NN similarity search, keeping only hits at or above
// threshold. Results come back in descending score order; an empty result
// is not an error.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, threshold float32, filters map[string]string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}
	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, fieldMatch(k, v))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	var resp *pb.SearchResponse
	err := fn.RetryOp(ctx, storeRetry, func(ctx context.Context) error {
		var err error
		resp, err = s.points.Search(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", err)
	}
	return fn.Map(resp.GetResult(), toHit), nil
}

// Stats returns the exact point count of the collection.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("vector: count points: %w", err)
	}
	return Stats{Collection: s.collection, Points: resp.GetResult().GetCount()}, nil
}

// HealthCheck reports whether Qdrant answers a collection listing.
func (s *Store) HealthCheck(ctx context.Context) bool {
	_, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	return err == nil
}
