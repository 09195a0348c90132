package store

import (
	"context"
	"math"

	"docqa/internal/models"
)

// Store is the persistence contract for embedding records. Upsert must
// overwrite an existing record with the same chunk id, and a record is
// written whole or not at all — never a vector without its metadata.
type Store interface {
	Upsert(ctx context.Context, records []models.EmbeddingRecord) error
	// Query returns up to k matches by descending cosine similarity.
	// Exact tie order between backends is not guaranteed; the index layer
	// re-sorts with the chunk-id tie-break.
	Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// Normalize scales the vector to unit length in place. All backends are
// configured for cosine distance, so insert-time and query-time vectors go
// through the same normalization.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
