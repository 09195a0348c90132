// Package llm wraps the chat model behind a small interface the composer
// can use, with token usage pulled out of the generation metadata.
package llm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Usage carries the token counts reported by the provider for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client generates a completion from a system prompt and a user message.
type Client interface {
	Generate(ctx context.Context, system, user string) (string, Usage, error)
	Model() string
}

// Func adapts a plain function to Client, mostly for tests.
type Func struct {
	Fn   func(ctx context.Context, system, user string) (string, Usage, error)
	Name string
}

func (f Func) Generate(ctx context.Context, system, user string) (string, Usage, error) {
	return f.Fn(ctx, system, user)
}

func (f Func) Model() string { return f.Name }

// LangChain runs completions through a langchaingo model.
type LangChain struct {
	model   llms.Model
	name    string
	timeout time.Duration
}

func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration) (*LangChain, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return newLangChain(m, model, timeout), nil
}

func NewOllama(serverURL, model string, timeout time.Duration) (*LangChain, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return newLangChain(m, model, timeout), nil
}

func newLangChain(m llms.Model, name string, timeout time.Duration) *LangChain {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LangChain{model: m, name: name, timeout: timeout}
}

func (c *LangChain) Model() string { return c.name }

func (c *LangChain) Generate(ctx context.Context, system, user string) (string, Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(0))
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("model returned no choices")
	}
	choice := resp.Choices[0]
	return choice.Content, usageFromInfo(choice.GenerationInfo), nil
}

func usageFromInfo(info map[string]any) Usage {
	var u Usage
	if n, ok := info["PromptTokens"].(int); ok {
		u.PromptTokens = n
	}
	if n, ok := info["CompletionTokens"].(int); ok {
		u.CompletionTokens = n
	}
	return u
}

// Retryable reports whether a generation failure is worth another attempt:
// timeouts, connection trouble, rate limiting, and provider 5xx responses.
// Context cancellation from the caller is not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "too many requests", "429",
		"500", "502", "503", "504",
		"connection refused", "connection reset", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Rate-limited providers put the wait in the message body, e.g.
// "Rate limit reached ... Please try again in 20s" or "retry after 2 seconds".
var retryAfterPattern = regexp.MustCompile(`(?i)(?:try again|retry)(?: again)? (?:in|after) ([0-9]+(?:\.[0-9]+)?) ?(ms|milliseconds?|secs?|seconds?|mins?|minutes?|s|m)\b`)

// RetryAfterHint extracts the provider-suggested wait from an error message.
// Zero when the message carries no hint.
func RetryAfterHint(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	v, perr := strconv.ParseFloat(m[1], 64)
	if perr != nil {
		return 0
	}
	unit := time.Second
	switch u := strings.ToLower(m[2]); {
	case u == "ms" || strings.HasPrefix(u, "milli"):
		unit = time.Millisecond
	case u == "m" || strings.HasPrefix(u, "min"):
		unit = time.Minute
	}
	return time.Duration(v * float64(unit))
}
