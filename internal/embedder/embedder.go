package embedder

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns text into a fixed-length vector. The same instance must be
// used at index time and query time; mixing embedding spaces silently
// corrupts similarity ranking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function, mostly for tests.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// LangChain wraps a langchaingo embedder.
type LangChain struct {
	impl *embeddings.EmbedderImpl
}

func (l *LangChain) Embed(ctx context.Context, text string) ([]float32, error) {
	return l.impl.EmbedQuery(ctx, text)
}

// NewOpenAI builds an embedder against any OpenAI-compatible endpoint
// (OpenAI, OpenRouter, ...).
func NewOpenAI(apiKey, baseURL, model string) (*LangChain, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithModel(model),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &LangChain{impl: impl}, nil
}

// NewOllama builds an embedder against a local Ollama server.
func NewOllama(serverURL, model string) (*LangChain, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &LangChain{impl: impl}, nil
}
