// Package rag ties retrieval, answer composition, and cost accounting into
// the single Ask operation the CLI exposes.
package rag

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"docqa/internal/composer"
	"docqa/internal/models"
	"docqa/internal/retriever"
	"docqa/internal/session"
)

const (
	DefaultMaxAttempts = 3
	baseBackoff        = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second
)

type Service struct {
	retriever   *retriever.Retriever
	composer    *composer.Composer
	session     *session.Session
	model       string
	maxAttempts int

	sleep func(ctx context.Context, d time.Duration) error
}

func New(r *retriever.Retriever, c *composer.Composer, s *session.Session, model string, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		retriever:   r,
		composer:    c,
		session:     s,
		model:       model,
		maxAttempts: maxAttempts,
		sleep:       sleepCtx,
	}
}

// Ask answers a question against the indexed documents and accounts for what
// it cost. Retryable generation failures are retried with exponential
// backoff up to the attempt limit; retrieval failures and non-retryable
// generation failures surface immediately. The short-circuit answer for an
// empty retrieval costs nothing and is not recorded.
func (s *Service) Ask(ctx context.Context, question string) (models.QueryReport, error) {
	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return models.QueryReport{}, err
	}

	answer, err := s.composeWithRetry(ctx, question, results)
	if err != nil {
		return models.QueryReport{}, err
	}

	var cost float64
	if answer.Generated {
		cost = s.session.Record(s.model, answer.PromptTokens, answer.CompletionTokens)
	}
	report := models.QueryReport{
		Answer:         answer,
		CostThisCall:   cost,
		CumulativeCost: s.session.Totals().CostUSD,
	}
	log.Info().
		Bool("generated", answer.Generated).
		Int("citations", len(answer.Citations)).
		Float64("cost_usd", cost).
		Msg("question answered")
	return report, nil
}

func (s *Service) composeWithRetry(ctx context.Context, question string, results []models.RetrievalResult) (models.Answer, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, lastErr)
			log.Warn().Err(lastErr).Int("attempt", attempt+1).Dur("backoff", delay).
				Msg("retrying answer generation")
			if err := s.sleep(ctx, delay); err != nil {
				return models.Answer{}, err
			}
		}
		answer, err := s.composer.Compose(ctx, question, results)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		var genErr *models.GenerationError
		if !errors.As(err, &genErr) || !genErr.Retryable {
			return models.Answer{}, err
		}
	}
	return models.Answer{}, lastErr
}

// backoffDelay doubles the base delay per attempt with up to 25% jitter,
// capped. A server-provided retry-after wins when longer.
func backoffDelay(attempt int, err error) time.Duration {
	delay := baseBackoff << (attempt - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	delay += time.Duration(rand.Int63n(int64(delay) / 4))
	var genErr *models.GenerationError
	if errors.As(err, &genErr) && genErr.RetryAfter > delay {
		delay = genErr.RetryAfter
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
