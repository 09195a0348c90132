// Package chromem persists embedding records in a chromem-go collection.
// This is the default backend: a pure-Go store that survives restarts at a
// configured path without external infrastructure.
package chromem

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docqa/internal/models"
	"docqa/internal/store"
)

const compress = false

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
}

// New opens (or creates) a persistent database at path. An empty path gives
// an in-memory store, which is handy in tests.
func New(path, collectionName string) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// the embedding func is never used: vectors are always supplied
	c, err := db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &Store{db: db, collection: c, name: collectionName}, nil
}

func noEmbedding(_ context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("no embedding function configured (got text of %d bytes)", len(text))
}

func (s *Store) Upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		ids[i] = r.ChunkID
		docs[i] = chromem.Document{
			ID:        r.ChunkID,
			Content:   r.Content,
			Embedding: store.Normalize(r.Vector),
			Metadata: map[string]string{
				"filename": r.Filename,
				"page":     strconv.Itoa(r.Page),
			},
		}
	}
	// delete-then-add keeps re-insertion an overwrite instead of a
	// duplicate, and each document is written atomically by chromem
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	hits, err := s.collection.QueryEmbedding(ctx, store.Normalize(vector), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		page, _ := strconv.Atoi(hit.Metadata["page"])
		results = append(results, models.RetrievalResult{
			ChunkID:    hit.ID,
			Text:       hit.Content,
			Filename:   hit.Metadata["filename"],
			Page:       page,
			Similarity: hit.Similarity,
		})
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return &models.IndexWriteError{Err: err}
	}
	c, err := s.db.GetOrCreateCollection(s.name, nil, noEmbedding)
	if err != nil {
		return &models.IndexWriteError{Err: err}
	}
	s.collection = c
	return nil
}
