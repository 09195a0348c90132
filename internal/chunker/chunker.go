package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/models"
	"docqa/internal/tokenizer"
)

const (
	DefaultWindowTokens    = 500
	DefaultOverlapFraction = 0.10
	// Windows shorter than this are usually headers or footers and only
	// add noise to retrieval. A document that is entirely shorter still
	// produces its single chunk.
	DefaultMinChunkTokens = 8
)

// Chunker windows a document's token stream into overlapping chunks.
// Chunking is a pure function of the document content, so running it twice
// yields identical chunk ids and texts.
type Chunker struct {
	tok       tokenizer.Tokenizer
	window    int
	overlap   int
	minTokens int
}

func New(tok tokenizer.Tokenizer, windowTokens int, overlapFraction float64) *Chunker {
	if windowTokens <= 0 {
		windowTokens = DefaultWindowTokens
	}
	if overlapFraction < 0 || overlapFraction >= 1 {
		overlapFraction = DefaultOverlapFraction
	}
	return &Chunker{
		tok:       tok,
		window:    windowTokens,
		overlap:   int(float64(windowTokens) * overlapFraction),
		minTokens: DefaultMinChunkTokens,
	}
}

type pagedToken struct {
	text string
	page int
}

// Chunk splits the document into token windows of the configured size.
// Windows never cross the document boundary; they may cross page boundaries,
// and each chunk records the page its first token starts on.
func (c *Chunker) Chunk(doc models.Document) []models.Chunk {
	var stream []pagedToken
	for _, page := range doc.Pages {
		for _, t := range c.tok.Encode(page.Text) {
			stream = append(stream, pagedToken{text: t, page: page.PageNumber})
		}
	}
	if len(stream) == 0 {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	seq := 0
	for start < len(stream) {
		end := start + c.window
		if end >= len(stream) {
			end = len(stream)
		} else {
			end = c.cutAtBoundary(stream, start, end)
		}

		text := assemble(stream[start:end])
		count := end - start
		// short tail windows are noise unless they are all there is
		if count >= c.minTokens || len(chunks) == 0 && end == len(stream) {
			chunks = append(chunks, models.Chunk{
				ChunkID:        ChunkID(doc.ID, seq),
				Text:           text,
				TokenCount:     count,
				SourceFilename: doc.Filename,
				SourcePage:     stream[start].page,
				DocumentID:     doc.ID,
				SequenceIndex:  seq,
			})
			seq++
		}

		if end == len(stream) {
			break
		}
		// next window re-reads the overlap tail of this one, so a sentence
		// cut short of the full window keeps the shared-token guarantee
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutAtBoundary prefers ending the window at a sentence or paragraph break
// found in its last 10%, falling back to the hard token cut. Orphaned
// half-sentences at window edges degrade retrieval quality.
func (c *Chunker) cutAtBoundary(stream []pagedToken, start, end int) int {
	lookback := c.window / 10
	if lookback > c.overlap {
		lookback = c.overlap // never cut past the next window's start
	}
	for i := end - 1; i > end-lookback && i > start; i-- {
		if endsSentence(stream[i-1].text) || stream[i].page != stream[i-1].page {
			return i
		}
	}
	return end
}

func endsSentence(token string) bool {
	t := strings.TrimRight(token, " \t")
	if strings.HasSuffix(t, "\n\n") {
		return true
	}
	t = strings.TrimRight(t, "\n")
	return strings.HasSuffix(t, ".") || strings.HasSuffix(t, "!") || strings.HasSuffix(t, "?")
}

func assemble(tokens []pagedToken) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 && t.page != tokens[i-1].page && !strings.HasSuffix(tokens[i-1].text, "\n") {
			b.WriteString("\n")
		}
		b.WriteString(t.text)
	}
	return strings.TrimSpace(b.String())
}

// ChunkID is deterministic for (document id, sequence index); zero padding
// keeps ids in sequence order when sorted lexically, which the index relies
// on for stable tie-breaking.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s:%06d", documentID, seq)
}
