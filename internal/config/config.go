package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"docqa/internal/session"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding ProviderConfig  `yaml:"embedding"`
	Chat      ProviderConfig  `yaml:"chat"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	// Prices overrides the built-in table when set.
	Prices *session.PriceTable `yaml:"prices"`
}

type StoreConfig struct {
	// Backend is one of: chromem, memory, pgvector, qdrant.
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	UseTLS     bool   `yaml:"use_tls"`
	Dimension  int    `yaml:"dimension"`
	Debug      bool   `yaml:"debug"`
}

type ProviderConfig struct {
	// Provider is one of: openai, ollama.
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	// TimeoutSeconds bounds a single provider call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type ChunkingConfig struct {
	WindowTokens    int     `yaml:"window_tokens"`
	OverlapFraction float64 `yaml:"overlap_fraction"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// MinSimilarity and DedupThreshold are pointers so that an explicit 0
	// in the file disables the floor rather than falling back to defaults.
	MinSimilarity  *float32 `yaml:"min_similarity"`
	DedupThreshold *float64 `yaml:"dedup_threshold"`
}

type PipelineConfig struct {
	Concurrency  int    `yaml:"concurrency"`
	OnError      string `yaml:"on_error"`
	ManifestPath string `yaml:"manifest_path"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// API keys usually arrive through the environment, not the file.
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("DOCQA_EMBEDDING_API_KEY")
	}
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = os.Getenv("DOCQA_CHAT_API_KEY")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    "chromem",
			Path:       "data/docqa.db",
			Collection: "documents",
			Dimension:  1536,
		},
		Embedding: ProviderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Chat: ProviderConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Chunking: ChunkingConfig{
			WindowTokens:    500,
			OverlapFraction: 0.10,
		},
		// MinSimilarity and DedupThreshold stay nil here; the retriever
		// applies its own defaults for unset values.
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Pipeline: PipelineConfig{
			Concurrency:  4,
			OnError:      "skip",
			ManifestPath: "data/manifest.json",
			MaxAttempts:  3,
		},
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "chromem", "memory", "pgvector", "qdrant":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	for name, p := range map[string]ProviderConfig{"embedding": c.Embedding, "chat": c.Chat} {
		switch p.Provider {
		case "openai", "ollama":
		default:
			return fmt.Errorf("unknown %s provider %q", name, p.Provider)
		}
		if p.Model == "" {
			return fmt.Errorf("%s model must be set", name)
		}
	}
	if c.Chunking.WindowTokens <= 0 {
		return fmt.Errorf("chunking window_tokens must be positive")
	}
	if c.Chunking.OverlapFraction < 0 || c.Chunking.OverlapFraction >= 1 {
		return fmt.Errorf("chunking overlap_fraction must be in [0, 1)")
	}
	if t := c.Retrieval.DedupThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("retrieval dedup_threshold must be in [0, 1]")
	}
	if c.Pipeline.OnError != "skip" && c.Pipeline.OnError != "abort" {
		return fmt.Errorf("pipeline on_error must be skip or abort, got %q", c.Pipeline.OnError)
	}
	return nil
}
