// Package session tracks LLM spend: a versioned price table and running
// totals for one interactive session.
package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"docqa/internal/helper"
)

// Price is USD per 1000 tokens, split by direction.
type Price struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k"`
	CompletionPer1K float64 `yaml:"completion_per_1k"`
}

// PriceTable maps model names to prices. The version travels with every
// session so recorded costs can be traced back to the table that produced
// them after prices change.
type PriceTable struct {
	Version string           `yaml:"version"`
	Models  map[string]Price `yaml:"models"`
}

// DefaultPriceTable covers the models the module ships configured for.
// Prices move; bump the version whenever they do.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		Version: "2025-06",
		Models: map[string]Price{
			"gpt-4o":        {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
			"gpt-4o-mini":   {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
			"gpt-3.5-turbo": {PromptPer1K: 0.0005, CompletionPer1K: 0.0015},
		},
	}
}

// Cost prices one call. Unknown models cost zero; the caller still gets its
// token counts recorded.
func (t PriceTable) Cost(model string, promptTokens, completionTokens int) (float64, bool) {
	p, ok := t.Models[model]
	if !ok {
		return 0, false
	}
	cost := float64(promptTokens)/1000*p.PromptPer1K +
		float64(completionTokens)/1000*p.CompletionPer1K
	return cost, true
}

// Totals is a snapshot of a session's accumulated usage.
type Totals struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Session accumulates usage across calls. Record and Totals are safe for
// concurrent use; a snapshot taken between two Records always reflects
// whole calls, never a half-applied one.
type Session struct {
	ID     string
	prices PriceTable

	mu     sync.Mutex
	totals Totals
}

func New(prices PriceTable) *Session {
	return &Session{ID: helper.GenerateUUID(), prices: prices}
}

// Record prices one call, folds it into the totals, and returns the cost of
// this call alone.
func (s *Session) Record(model string, promptTokens, completionTokens int) float64 {
	cost, known := s.prices.Cost(model, promptTokens, completionTokens)
	if !known {
		log.Warn().Str("model", model).Str("price_table", s.prices.Version).
			Msg("model missing from price table, recording zero cost")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals.Calls++
	s.totals.PromptTokens += promptTokens
	s.totals.CompletionTokens += completionTokens
	s.totals.CostUSD += cost
	return cost
}

func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

func (s *Session) PriceVersion() string { return s.prices.Version }
