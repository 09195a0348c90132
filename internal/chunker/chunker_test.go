package chunker

import (
	"fmt"
	"strings"
	"testing"

	"docqa/internal/models"
	"docqa/internal/tokenizer"
)

func wordDoc(id string, pages ...string) models.Document {
	doc := models.Document{ID: id, Filename: id + ".txt"}
	for i, text := range pages {
		doc.Pages = append(doc.Pages, models.PageText{PageNumber: i + 1, Text: text})
	}
	return doc
}

// nWords builds n distinct letter-only word tokens with no punctuation, so
// no boundary cut can fire and window math stays exact.
func nWords(n int) string {
	return strings.Join(wordList(n), " ")
}

func wordList(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%c%c", 'a'+rune(i/26), 'a'+rune(i%26))
	}
	return words
}

func TestChunkEmptyDocument(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2)
	if got := c.Chunk(wordDoc("empty", "")); got != nil {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
}

func TestChunkShortDocumentKeepsSingleChunk(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2)
	chunks := c.Chunk(wordDoc("short", "just three words"))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 3 {
		t.Errorf("TokenCount = %d, want 3", chunks[0].TokenCount)
	}
	if chunks[0].Text != "just three words" {
		t.Errorf("Text = %q", chunks[0].Text)
	}
}

func TestChunkWindowAndOverlap(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2) // overlap = 2
	chunks := c.Chunk(wordDoc("doc", nWords(25)))

	// windows: [0,10), [8,18), [16,25)
	wantCounts := []int{10, 10, 9}
	if len(chunks) != len(wantCounts) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantCounts))
	}
	for i, want := range wantCounts {
		if chunks[i].TokenCount != want {
			t.Errorf("chunk %d TokenCount = %d, want %d", i, chunks[i].TokenCount, want)
		}
	}

	// consecutive chunks share the overlap tail
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		tail := prev[len(prev)-2:]
		head := cur[:2]
		if tail[0] != head[0] || tail[1] != head[1] {
			t.Errorf("chunks %d/%d do not overlap: tail %v vs head %v", i-1, i, tail, head)
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2)
	doc := wordDoc("doc", nWords(25))
	first := c.Chunk(doc)
	second := c.Chunk(doc)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkIDs(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2)
	chunks := c.Chunk(wordDoc("abc123", nWords(25)))
	for i, ch := range chunks {
		want := fmt.Sprintf("abc123:%06d", i)
		if ch.ChunkID != want {
			t.Errorf("chunk %d id = %q, want %q", i, ch.ChunkID, want)
		}
		if ch.SequenceIndex != i {
			t.Errorf("chunk %d SequenceIndex = %d", i, ch.SequenceIndex)
		}
		if ch.DocumentID != "abc123" {
			t.Errorf("chunk %d DocumentID = %q", i, ch.DocumentID)
		}
	}
}

func TestChunkSentenceBoundaryCut(t *testing.T) {
	// 30 word tokens with a period after the 18th word, so the period
	// token sits at stream index 18. With a window of 20 the lookback
	// covers it and the first chunk should end right after the period.
	words := wordList(30)
	text := strings.Join(words[:18], " ") + ". " + strings.Join(words[18:], " ")

	c := New(tokenizer.NewWords(), 20, 0.2)
	chunks := c.Chunk(wordDoc("doc", text))
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("first chunk should end at the sentence: %q", chunks[0].Text)
	}
	if chunks[0].TokenCount != 19 {
		t.Errorf("first chunk TokenCount = %d, want 19", chunks[0].TokenCount)
	}
}

func TestChunkRecordsStartPage(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2)
	chunks := c.Chunk(wordDoc("doc", nWords(12), nWords(12)))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].SourcePage != 1 {
		t.Errorf("first chunk SourcePage = %d, want 1", chunks[0].SourcePage)
	}
	last := chunks[len(chunks)-1]
	if last.SourcePage != 2 {
		t.Errorf("last chunk SourcePage = %d, want 2", last.SourcePage)
	}
}

func TestChunkPageTransitionGetsNewline(t *testing.T) {
	c := New(tokenizer.NewWords(), 10, 0.2)
	chunks := c.Chunk(wordDoc("doc", "alpha beta", "gamma delta"))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "beta\n") {
		t.Errorf("expected newline at page transition: %q", chunks[0].Text)
	}
}

func TestChunkProgressWithLargeOverlap(t *testing.T) {
	// overlap close to the window must still terminate
	c := New(tokenizer.NewWords(), 10, 0.9)
	chunks := c.Chunk(wordDoc("doc", nWords(100)))
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	seen := map[string]bool{}
	for _, ch := range chunks {
		if seen[ch.ChunkID] {
			t.Fatalf("duplicate chunk id %s", ch.ChunkID)
		}
		seen[ch.ChunkID] = true
	}
}
