package index

import (
	"context"
	"errors"
	"testing"

	"docqa/internal/embedder"
	"docqa/internal/models"
)

type fakeStore struct {
	upsert    func(ctx context.Context, records []models.EmbeddingRecord) error
	query     func(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error)
	count     func(ctx context.Context) (int, error)
	deleteAll func(ctx context.Context) error
}

func (f *fakeStore) Upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	return f.upsert(ctx, records)
}

func (f *fakeStore) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievalResult, error) {
	return f.query(ctx, vector, k)
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	if f.count == nil {
		return 0, nil
	}
	return f.count(ctx)
}

func (f *fakeStore) DeleteAll(ctx context.Context) error {
	return f.deleteAll(ctx)
}

func constEmbedder(vec []float32) embedder.Func {
	return embedder.Func(func(ctx context.Context, text string) ([]float32, error) {
		return vec, nil
	})
}

func someChunks(ids ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(ids))
	for i, id := range ids {
		chunks[i] = models.Chunk{ChunkID: id, Text: "text " + id, SourceFilename: "f.pdf", SourcePage: i + 1}
	}
	return chunks
}

func TestInsertEmbedsAndUpserts(t *testing.T) {
	var got []models.EmbeddingRecord
	st := &fakeStore{upsert: func(_ context.Context, records []models.EmbeddingRecord) error {
		got = records
		return nil
	}}
	ix := New(constEmbedder([]float32{1, 2}), st, 0)

	if err := ix.Insert(context.Background(), someChunks("a", "b")); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("upserted %d records, want 2", len(got))
	}
	if got[0].ChunkID != "a" || got[0].Content != "text a" || got[0].Filename != "f.pdf" || got[0].Page != 1 {
		t.Errorf("record 0 = %+v", got[0])
	}
	if len(got[1].Vector) != 2 {
		t.Errorf("record 1 vector = %v", got[1].Vector)
	}
}

func TestInsertEmbeddingFailureWritesNothing(t *testing.T) {
	upserts := 0
	st := &fakeStore{upsert: func(context.Context, []models.EmbeddingRecord) error {
		upserts++
		return nil
	}}
	boom := errors.New("model unavailable")
	em := embedder.Func(func(_ context.Context, text string) ([]float32, error) {
		if text == "text b" {
			return nil, boom
		}
		return []float32{1}, nil
	})
	ix := New(em, st, 0)

	err := ix.Insert(context.Background(), someChunks("a", "b", "c"))
	var embErr *models.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if embErr.ChunkID != "b" {
		t.Errorf("failing chunk = %s, want b", embErr.ChunkID)
	}
	if !errors.Is(err, boom) {
		t.Error("cause not wrapped")
	}
	if upserts != 0 {
		t.Errorf("store was written %d times despite embedding failure", upserts)
	}
}

func TestInsertPartialSkipsFailedChunks(t *testing.T) {
	var got []models.EmbeddingRecord
	st := &fakeStore{upsert: func(_ context.Context, records []models.EmbeddingRecord) error {
		got = append(got, records...)
		return nil
	}}
	boom := errors.New("model unavailable")
	em := embedder.Func(func(_ context.Context, text string) ([]float32, error) {
		if text == "text b" {
			return nil, boom
		}
		return []float32{1}, nil
	})
	ix := New(em, st, 0)

	n, failures, err := ix.InsertPartial(context.Background(), someChunks("a", "b", "c"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("inserted %d records, want 2", n)
	}
	if len(failures) != 1 || failures[0].ChunkID != "b" {
		t.Fatalf("failures = %v, want one for chunk b", failures)
	}
	if !errors.Is(failures[0], boom) {
		t.Error("cause not wrapped")
	}
	if len(got) != 2 || got[0].ChunkID != "a" || got[1].ChunkID != "c" {
		t.Errorf("stored records = %v, want a and c", got)
	}
}

func TestInsertPartialAllFailedWritesNothing(t *testing.T) {
	st := &fakeStore{upsert: func(context.Context, []models.EmbeddingRecord) error {
		t.Fatal("upsert called with no healthy records")
		return nil
	}}
	em := embedder.Func(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model unavailable")
	})
	ix := New(em, st, 0)

	n, failures, err := ix.InsertPartial(context.Background(), someChunks("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || len(failures) != 2 {
		t.Errorf("n = %d, failures = %d, want 0 and 2", n, len(failures))
	}
}

func TestInsertWrapsStoreFailure(t *testing.T) {
	boom := errors.New("disk full")
	st := &fakeStore{upsert: func(context.Context, []models.EmbeddingRecord) error {
		return boom
	}}
	ix := New(constEmbedder([]float32{1}), st, 0)

	err := ix.Insert(context.Background(), someChunks("a"))
	var writeErr *models.IndexWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected IndexWriteError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("cause not wrapped")
	}
}

func TestInsertEmptyBatch(t *testing.T) {
	st := &fakeStore{upsert: func(context.Context, []models.EmbeddingRecord) error {
		t.Fatal("upsert called for empty batch")
		return nil
	}}
	ix := New(constEmbedder([]float32{1}), st, 0)
	if err := ix.Insert(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}

func TestQueryClampsKToCount(t *testing.T) {
	var gotK int
	st := &fakeStore{
		count: func(context.Context) (int, error) { return 3, nil },
		query: func(_ context.Context, _ []float32, k int) ([]models.RetrievalResult, error) {
			gotK = k
			return nil, nil
		},
	}
	ix := New(constEmbedder([]float32{1}), st, 0)
	if _, err := ix.Query(context.Background(), []float32{1}, 10); err != nil {
		t.Fatal(err)
	}
	if gotK != 3 {
		t.Errorf("store queried with k = %d, want 3", gotK)
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	st := &fakeStore{
		count: func(context.Context) (int, error) { return 0, nil },
		query: func(context.Context, []float32, int) ([]models.RetrievalResult, error) {
			t.Fatal("query called on empty index")
			return nil, nil
		},
	}
	ix := New(constEmbedder([]float32{1}), st, 0)
	results, err := ix.Query(context.Background(), []float32{1}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if results != nil {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestQueryRejectsNonPositiveK(t *testing.T) {
	ix := New(constEmbedder([]float32{1}), &fakeStore{}, 0)
	if _, err := ix.Query(context.Background(), []float32{1}, 0); err == nil {
		t.Fatal("expected error for k = 0")
	}
}

func TestQueryReordersBackendResults(t *testing.T) {
	st := &fakeStore{
		count: func(context.Context) (int, error) { return 3, nil },
		query: func(context.Context, []float32, int) ([]models.RetrievalResult, error) {
			return []models.RetrievalResult{
				{ChunkID: "doc:000002", Similarity: 0.9},
				{ChunkID: "doc:000001", Similarity: 0.9},
				{ChunkID: "doc:000003", Similarity: 0.95},
			}, nil
		},
	}
	ix := New(constEmbedder([]float32{1}), st, 0)
	results, err := ix.Query(context.Background(), []float32{1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"doc:000003", "doc:000001", "doc:000002"}
	for i := range want {
		if results[i].ChunkID != want[i] {
			t.Errorf("result %d = %s, want %s", i, results[i].ChunkID, want[i])
		}
	}
}

func TestEmbedRejectsEmptyVector(t *testing.T) {
	em := embedder.Func(func(context.Context, string) ([]float32, error) {
		return nil, nil
	})
	ix := New(em, &fakeStore{}, 0)
	if _, err := ix.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty embedding vector")
	}
}
