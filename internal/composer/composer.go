// Package composer builds the grounded prompt and produces the final answer
// with its citations.
package composer

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/llm"
	"docqa/internal/models"
)

type Composer struct {
	client llm.Client
}

func New(client llm.Client) *Composer {
	return &Composer{client: client}
}

// Compose answers the question from the retrieved passages. With no passages
// it short-circuits to the fixed insufficient-context answer without calling
// the model, so an empty index never costs tokens. Citations come back in
// the order their source first appears in the context.
func (c *Composer) Compose(ctx context.Context, question string, results []models.RetrievalResult) (models.Answer, error) {
	if len(results) == 0 {
		return models.Answer{
			Text:      models.InsufficientContextAnswer,
			Citations: nil,
			Generated: false,
		}, nil
	}

	user := fmt.Sprintf(models.UserMessageTemplate, BuildContext(results), question)
	text, usage, err := c.client.Generate(ctx, models.SystemPrompt, user)
	if err != nil {
		return models.Answer{}, &models.GenerationError{
			Retryable:  llm.Retryable(err),
			RetryAfter: llm.RetryAfterHint(err),
			Err:        err,
		}
	}

	return models.Answer{
		Text:             strings.TrimSpace(text),
		Citations:        Citations(results),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Generated:        true,
	}, nil
}

// BuildContext renders the passages as numbered sections, each headed by its
// source attribution, separated so the model can tell passages apart.
func BuildContext(results []models.RetrievalResult) string {
	sections := make([]string, len(results))
	for i, r := range results {
		sections[i] = fmt.Sprintf("[Section %d] (source: %s, page %d)\n%s", i+1, r.Filename, r.Page, r.Text)
	}
	return strings.Join(sections, models.ContextSeparator)
}

// Citations lists each distinct (filename, page) pair once, in first-use
// order.
func Citations(results []models.RetrievalResult) []models.Citation {
	seen := make(map[models.Citation]bool, len(results))
	var cites []models.Citation
	for _, r := range results {
		c := models.Citation{Filename: r.Filename, Page: r.Page}
		if seen[c] {
			continue
		}
		seen[c] = true
		cites = append(cites, c)
	}
	return cites
}
