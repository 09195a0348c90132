package models

// PageText is the text of a single page as the extractor produced it.
type PageText struct {
	PageNumber int // 1-based
	Text       string
}

// Document is one ingested file. Immutable after extraction. ID is a
// sha256 content hash, so re-extracting the same file yields the same id.
type Document struct {
	ID       string
	Filename string
	Pages    []PageText
}

// Chunk is the atomic retrieval unit: an overlapping token window of
// document text with its provenance. ChunkID is deterministic for
// (document id, sequence index), which is what makes re-indexing an upsert
// instead of a duplication.
type Chunk struct {
	ChunkID        string
	Text           string
	TokenCount     int
	SourceFilename string
	SourcePage     int // page of the chunk's first token
	DocumentID     string
	SequenceIndex  int
}

// EmbeddingRecord is what the vector store persists, one per chunk.
type EmbeddingRecord struct {
	ChunkID  string
	Vector   []float32
	Content  string
	Filename string
	Page     int
}

// RetrievalResult is an ephemeral per-query match.
type RetrievalResult struct {
	ChunkID    string
	Text       string
	Filename   string
	Page       int
	Similarity float32
}

// Citation points at the page a piece of supporting text starts on.
type Citation struct {
	Filename string
	Page     int
}

// Answer is the composed response with its provenance and token usage.
type Answer struct {
	Text             string
	Citations        []Citation
	PromptTokens     int
	CompletionTokens int
	// Generated is false when the insufficient-context short-circuit fired
	// and no model call was made.
	Generated bool
}

// IndexReport summarizes one pipeline run.
type IndexReport struct {
	ChunksIndexed int
	ChunksSkipped int
	Errors        []DocumentError
}

// DocumentError records a per-document indexing failure.
type DocumentError struct {
	Filename string
	Err      error
}

// QueryReport is the per-question surface handed to the presentation layer.
type QueryReport struct {
	Answer         Answer
	CostThisCall   float64
	CumulativeCost float64
}
