// Package retriever turns a question into the context passages the answer
// will be grounded on.
package retriever

import (
	"context"

	"github.com/rs/zerolog/log"

	"docqa/internal/index"
	"docqa/internal/models"
	"docqa/internal/tokenizer"
)

const (
	DefaultTopK           = 5
	DefaultMinSimilarity  = 0.3
	DefaultDedupThreshold = 0.5
)

type Config struct {
	TopK int
	// MinSimilarity drops matches scoring below it. nil means the default;
	// an explicit 0 disables the floor.
	MinSimilarity *float32
	// DedupThreshold is the token-overlap fraction above which two results
	// from the same filename and page count as duplicates. nil means the
	// default.
	DedupThreshold *float64
}

type Retriever struct {
	index *index.Index
	tok   tokenizer.Tokenizer

	topK           int
	minSimilarity  float32
	dedupThreshold float64
}

func New(ix *index.Index, tok tokenizer.Tokenizer, cfg Config) *Retriever {
	r := &Retriever{
		index:          ix,
		tok:            tok,
		topK:           DefaultTopK,
		minSimilarity:  DefaultMinSimilarity,
		dedupThreshold: DefaultDedupThreshold,
	}
	if cfg.TopK > 0 {
		r.topK = cfg.TopK
	}
	if cfg.MinSimilarity != nil {
		r.minSimilarity = *cfg.MinSimilarity
	}
	if cfg.DedupThreshold != nil {
		r.dedupThreshold = *cfg.DedupThreshold
	}
	return r
}

// Retrieve embeds the question, queries the index, drops weak matches, and
// collapses near-duplicate passages from the same source page. The survivors
// keep their similarity order; a dedup victim is always the lower-scoring of
// the pair.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.RetrievalResult, error) {
	vector, err := r.index.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	results, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, err
	}

	kept := make([]models.RetrievalResult, 0, len(results))
	for _, res := range results {
		if res.Similarity < r.minSimilarity {
			continue
		}
		if r.duplicates(res, kept) {
			log.Debug().Str("chunk_id", res.ChunkID).Msg("dropping near-duplicate passage")
			continue
		}
		kept = append(kept, res)
	}
	log.Debug().
		Int("raw", len(results)).
		Int("kept", len(kept)).
		Msg("retrieval complete")
	return kept, nil
}

// duplicates reports whether res overlaps a higher-ranked kept result from
// the same filename and page by more than the dedup threshold. Results are
// visited in descending similarity, so the kept one always scores at least
// as high.
func (r *Retriever) duplicates(res models.RetrievalResult, kept []models.RetrievalResult) bool {
	var resTokens map[string]int
	for _, k := range kept {
		if k.Filename != res.Filename || k.Page != res.Page {
			continue
		}
		if resTokens == nil {
			resTokens = tokenCounts(r.tok, res.Text)
		}
		if overlapFraction(resTokens, tokenCounts(r.tok, k.Text)) > r.dedupThreshold {
			return true
		}
	}
	return false
}

func tokenCounts(tok tokenizer.Tokenizer, text string) map[string]int {
	counts := make(map[string]int)
	for _, t := range tok.Encode(text) {
		counts[t]++
	}
	return counts
}

// overlapFraction is the shared token mass relative to the smaller passage.
func overlapFraction(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var shared, sizeA, sizeB int
	for t, n := range a {
		sizeA += n
		if m, ok := b[t]; ok {
			shared += min(n, m)
		}
	}
	for _, n := range b {
		sizeB += n
	}
	smaller := min(sizeA, sizeB)
	if smaller == 0 {
		return 0
	}
	return float64(shared) / float64(smaller)
}
