package models

import (
	"fmt"
	"time"
)

// ExtractionError means one input file could not be read or parsed. It is
// fatal to that document only; the pipeline records it and moves on.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError tags an embedding failure with the chunk that caused it.
// The chunk is never upserted, so the store holds no partial vectors.
type EmbeddingError struct {
	ChunkID string
	Err     error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed chunk %s: %v", e.ChunkID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexWriteError means the persistence layer rejected a write. Fatal and
// surfaced to the caller; there is no silent partial index.
type IndexWriteError struct {
	Err error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write: %v", e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// GenerationError wraps a failed model call. Retryable is the hint for the
// caller's retry policy; the composer itself never retries.
type GenerationError struct {
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate answer: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
