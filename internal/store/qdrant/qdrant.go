// Package qdrant backs the store contract with a Qdrant server over gRPC,
// for corpora too large for the embedded backends.
package qdrant

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"docqa/internal/models"
	"docqa/internal/store"
)

type Config struct {
	Host       string
	Port       int
	UseTLS     bool
	PoolSize   uint
	Collection string
	Dimension  uint64
}

type Store struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		UseTLS:      cfg.UseTLS,
		PoolSize:    cfg.PoolSize,
		GrpcOptions: []grpc.DialOption{grpc.WithUserAgent("docqa")},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	s := &Store{client: client, collection: cfg.Collection, dimension: cfg.Dimension}
	if err := s.ensureCollection(ctx, cfg.Dimension); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context, dimension uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			// deterministic numeric id per chunk id, so re-upserting
			// the same chunk overwrites its point
			Id:      qdrant.NewIDNum(pointID(r.ChunkID)),
			Vectors: qdrant.NewVectors(store.Normalize(r.Vector)...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id": r.ChunkID,
				"content":  r.Content,
				"filename": r.Filename,
				"page":     int64(r.Page),
			}),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return &models.IndexWriteError{Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(store.Normalize(vector)...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, models.RetrievalResult{
			ChunkID:    hit.Payload["chunk_id"].GetStringValue(),
			Text:       hit.Payload["content"].GetStringValue(),
			Filename:   hit.Payload["filename"].GetStringValue(),
			Page:       int(hit.Payload["page"].GetIntegerValue()),
			Similarity: hit.Score,
		})
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(n), nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	// dropping and recreating the collection is cheaper than a filtered
	// points delete
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	if err := s.ensureCollection(ctx, s.dimension); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	return nil
}

func pointID(chunkID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(chunkID))
	return h.Sum64()
}
