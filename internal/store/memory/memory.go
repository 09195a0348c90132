// Package memory is a brute-force in-process store. It backs tests and
// small corpora where persistence is not needed.
package memory

import (
	"context"
	"sort"
	"sync"

	"docqa/internal/models"
	"docqa/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]models.EmbeddingRecord
}

func New() *Store {
	return &Store{records: make(map[string]models.EmbeddingRecord)}
}

func (s *Store) Upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Vector = store.Normalize(r.Vector)
		s.records[r.ChunkID] = r
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vector = store.Normalize(vector)
	results := make([]models.RetrievalResult, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, models.RetrievalResult{
			ChunkID:    r.ChunkID,
			Text:       r.Content,
			Filename:   r.Filename,
			Page:       r.Page,
			Similarity: dot(vector, r.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]models.EmbeddingRecord)
	return nil
}

// dot is cosine similarity given unit-normalized inputs.
func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
