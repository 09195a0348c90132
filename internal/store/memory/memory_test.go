package memory

import (
	"context"
	"testing"

	"docqa/internal/models"
)

func rec(id string, vec []float32, filename string, page int) models.EmbeddingRecord {
	return models.EmbeddingRecord{ChunkID: id, Vector: vec, Content: "text " + id, Filename: filename, Page: page}
}

func TestUpsertAndCount(t *testing.T) {
	ctx := context.Background()
	s := New()

	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("fresh store Count = %d", n)
	}
	err := s.Upsert(ctx, []models.EmbeddingRecord{
		rec("a", []float32{1, 0}, "f.pdf", 1),
		rec("b", []float32{0, 1}, "f.pdf", 2),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.Upsert(ctx, []models.EmbeddingRecord{rec("a", []float32{1, 0}, "f.pdf", 1)})
	s.Upsert(ctx, []models.EmbeddingRecord{{ChunkID: "a", Vector: []float32{0, 1}, Content: "updated", Filename: "f.pdf", Page: 1}})

	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1 after re-upsert", n)
	}
	results, err := s.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "updated" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestQueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Upsert(ctx, []models.EmbeddingRecord{
		rec("far", []float32{0, 1}, "f.pdf", 1),
		rec("near", []float32{1, 0}, "f.pdf", 1),
		rec("mid", []float32{0.6, 0.8}, "f.pdf", 2),
	})

	results, err := s.Query(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"near", "mid", "far"}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for i, want := range wantOrder {
		if results[i].ChunkID != want {
			t.Errorf("result %d = %s, want %s", i, results[i].ChunkID, want)
		}
	}
	if s := results[0].Similarity; s < 0.999 {
		t.Errorf("exact match similarity = %f", s)
	}
}

func TestQueryTieBreaksOnChunkID(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Upsert(ctx, []models.EmbeddingRecord{
		rec("doc:000002", []float32{1, 0}, "f.pdf", 1),
		rec("doc:000001", []float32{1, 0}, "f.pdf", 1),
		rec("doc:000003", []float32{1, 0}, "f.pdf", 1),
	})

	results, _ := s.Query(ctx, []float32{1, 0}, 3)
	want := []string{"doc:000001", "doc:000002", "doc:000003"}
	for i := range want {
		if results[i].ChunkID != want[i] {
			t.Errorf("result %d = %s, want %s", i, results[i].ChunkID, want[i])
		}
	}
}

func TestQueryLimitsToK(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Upsert(ctx, []models.EmbeddingRecord{
		rec("a", []float32{1, 0}, "f.pdf", 1),
		rec("b", []float32{0, 1}, "f.pdf", 1),
	})
	results, _ := s.Query(ctx, []float32{1, 0}, 1)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Upsert(ctx, []models.EmbeddingRecord{rec("a", []float32{1, 0}, "f.pdf", 1)})
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Fatalf("Count after DeleteAll = %d", n)
	}
}
