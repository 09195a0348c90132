// Package index is the embedding index: an embedding function in front of a
// vector store. Inserts embed each chunk exactly once; queries come back in
// a deterministic order regardless of backend.
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"docqa/internal/embedder"
	"docqa/internal/models"
	"docqa/internal/store"
)

type Index struct {
	embedder     embedder.Embedder
	store        store.Store
	embedTimeout time.Duration
}

func New(em embedder.Embedder, st store.Store, embedTimeout time.Duration) *Index {
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	return &Index{embedder: em, store: st, embedTimeout: embedTimeout}
}

// Insert embeds the chunks and upserts their records. The first chunk whose
// embedding fails stops the call with an EmbeddingError naming it; nothing
// from this batch is written in that case.
func (ix *Index) Insert(ctx context.Context, chunks []models.Chunk) error {
	records := make([]models.EmbeddingRecord, 0, len(chunks))
	for _, c := range chunks {
		vector, err := ix.embed(ctx, c.Text)
		if err != nil {
			return &models.EmbeddingError{ChunkID: c.ChunkID, Err: err}
		}
		records = append(records, ix.record(c, vector))
	}
	return ix.upsert(ctx, records)
}

// InsertPartial embeds what it can: chunks that fail to embed are skipped
// and returned as EmbeddingErrors, the healthy records are still written.
// The no-partial-vector rule holds per record, not per batch, so one bad
// chunk never discards its document's good chunks.
func (ix *Index) InsertPartial(ctx context.Context, chunks []models.Chunk) (int, []*models.EmbeddingError, error) {
	var failures []*models.EmbeddingError
	records := make([]models.EmbeddingRecord, 0, len(chunks))
	for _, c := range chunks {
		vector, err := ix.embed(ctx, c.Text)
		if err != nil {
			failures = append(failures, &models.EmbeddingError{ChunkID: c.ChunkID, Err: err})
			continue
		}
		records = append(records, ix.record(c, vector))
	}
	if err := ix.upsert(ctx, records); err != nil {
		return 0, failures, err
	}
	return len(records), failures, nil
}

func (ix *Index) record(c models.Chunk, vector []float32) models.EmbeddingRecord {
	return models.EmbeddingRecord{
		ChunkID:  c.ChunkID,
		Vector:   vector,
		Content:  c.Text,
		Filename: c.SourceFilename,
		Page:     c.SourcePage,
	}
}

func (ix *Index) upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	log.Debug().Int("records", len(records)).Msg("upserted embedding records")
	return nil
}

// Query returns up to topK matches by descending similarity, ties broken by
// ascending chunk id. topK is clamped to the number of stored records; an
// index with fewer records returns them all instead of failing.
func (ix *Index) Query(ctx context.Context, vector []float32, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	count, err := ix.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	results, err := ix.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results, nil
}

// Embed runs the embedding function with the index's timeout. The retriever
// uses this for questions so query vectors live in the same embedding space
// as the stored ones.
func (ix *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	return ix.embed(ctx, text)
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}

func (ix *Index) Reset(ctx context.Context) error {
	return ix.store.DeleteAll(ctx)
}

func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, ix.embedTimeout)
	defer cancel()
	vector, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedding function returned an empty vector")
	}
	return vector, nil
}
