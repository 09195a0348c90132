// Package pipeline drives ingestion: extract, chunk, embed, and index a set
// of documents, isolating per-document failures so one bad file does not
// sink the batch.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"docqa/internal/chunker"
	"docqa/internal/extract"
	"docqa/internal/index"
	"docqa/internal/models"
)

// ErrorMode controls what happens when a single document fails.
type ErrorMode string

const (
	// ErrorModeSkip records the failure in the report and carries on.
	ErrorModeSkip ErrorMode = "skip"
	// ErrorModeAbort cancels the remaining documents on the first failure.
	ErrorModeAbort ErrorMode = "abort"
)

type Config struct {
	// Concurrency bounds how many documents are processed at once.
	Concurrency int
	OnError     ErrorMode
}

type Pipeline struct {
	index    *index.Index
	chunker  *chunker.Chunker
	manifest *Manifest
	cfg      Config

	extractFile func(path string) (models.Document, error)
}

func New(ix *index.Index, ck *chunker.Chunker, manifest *Manifest, cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.OnError == "" {
		cfg.OnError = ErrorModeSkip
	}
	return &Pipeline{
		index:       ix,
		chunker:     ck,
		manifest:    manifest,
		cfg:         cfg,
		extractFile: extract.File,
	}
}

// IndexFiles extracts and indexes the given paths. Documents already present
// in the manifest with an unchanged fingerprint are skipped. In skip mode a
// failure lands in the report's Errors and the rest proceed, down to the
// chunk: a chunk that fails to embed is reported while its document's
// healthy chunks are still written. In abort mode the first failure cancels
// the batch and is returned alongside the partial report.
func (p *Pipeline) IndexFiles(ctx context.Context, paths []string) (models.IndexReport, error) {
	var (
		mu     sync.Mutex
		report models.IndexReport
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			indexed, skipped, chunkErrs, err := p.indexOne(ctx, path)
			mu.Lock()
			defer mu.Unlock()
			report.ChunksIndexed += indexed
			report.ChunksSkipped += skipped
			for _, ce := range chunkErrs {
				log.Warn().Err(ce).Str("file", path).Msg("chunk failed to embed")
				report.Errors = append(report.Errors, models.DocumentError{Filename: path, Err: ce})
			}
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("document failed to index")
				report.Errors = append(report.Errors, models.DocumentError{Filename: path, Err: err})
				if p.cfg.OnError == ErrorModeAbort {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if saveErr := p.manifest.Save(); saveErr != nil {
		log.Error().Err(saveErr).Msg("failed to persist index manifest")
		if err == nil {
			err = saveErr
		}
	}
	log.Info().
		Int("indexed", report.ChunksIndexed).
		Int("skipped", report.ChunksSkipped).
		Int("failed", len(report.Errors)).
		Msg("indexing pass finished")
	return report, err
}

// Reset drops every stored record and forgets the manifest, so the next
// IndexFiles call re-ingests everything from scratch.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.index.Reset(ctx); err != nil {
		return err
	}
	p.manifest.Clear()
	return p.manifest.Save()
}

func (p *Pipeline) indexOne(ctx context.Context, path string) (indexed, skipped int, chunkErrs []*models.EmbeddingError, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, nil, err
	}
	doc, err := p.extractFile(path)
	if err != nil {
		return 0, 0, nil, err
	}

	fingerprint := Fingerprint(doc)
	if chunks, ok := p.manifest.Seen(doc.ID, fingerprint); ok {
		log.Debug().Str("file", doc.Filename).Msg("document unchanged, skipping")
		return 0, chunks, nil, nil
	}

	chunks := p.chunker.Chunk(doc)
	if p.cfg.OnError == ErrorModeAbort {
		if err := p.index.Insert(ctx, chunks); err != nil {
			return 0, 0, nil, err
		}
		p.manifest.Record(doc.ID, doc.Filename, fingerprint, len(chunks))
		return len(chunks), 0, nil, nil
	}

	n, failures, err := p.index.InsertPartial(ctx, chunks)
	if err != nil {
		return 0, 0, failures, err
	}
	// A document with failed chunks stays out of the manifest so the next
	// pass retries it whole.
	if len(failures) == 0 {
		p.manifest.Record(doc.ID, doc.Filename, fingerprint, len(chunks))
	}
	return n, 0, failures, nil
}
