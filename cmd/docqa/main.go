package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docqa/internal/chunker"
	"docqa/internal/composer"
	"docqa/internal/config"
	"docqa/internal/embedder"
	"docqa/internal/helper"
	"docqa/internal/index"
	"docqa/internal/llm"
	"docqa/internal/models"
	"docqa/internal/pipeline"
	"docqa/internal/rag"
	"docqa/internal/retriever"
	"docqa/internal/session"
	"docqa/internal/store"
	chromemstore "docqa/internal/store/chromem"
	memorystore "docqa/internal/store/memory"
	pgvectorstore "docqa/internal/store/pgvector"
	qdrantstore "docqa/internal/store/qdrant"
	"docqa/internal/tokenizer"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	configPath := flag.String("config", "./configs/config.yaml", "Path to the config file")
	files := flag.String("file", "", "Comma-separated document files to index")
	query := flag.String("query", "", "Question to answer from the indexed documents")
	reset := flag.Bool("reset", false, "Drop the index before doing anything else")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *files == "" && *query == "" && !*reset {
		log.Fatal().Msg("Provide documents with -file, a question with -query, or -reset")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx := context.Background()
	app, err := newApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring components")
	}

	if *reset {
		if err := app.pipeline.Reset(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error resetting index")
		}
		log.Info().Msg("Index reset")
	}

	if *files != "" {
		paths := splitFiles(*files)
		report, err := app.pipeline.IndexFiles(ctx, paths)
		if err != nil {
			log.Fatal().Err(err).Msg("Error indexing documents")
		}
		log.Info().
			Int("indexed", report.ChunksIndexed).
			Int("skipped", report.ChunksSkipped).
			Msg("Indexing done")
		for _, de := range report.Errors {
			log.Warn().Err(de.Err).Str("file", de.Filename).Msg("Document skipped")
		}
		if *verbose {
			helper.PrettyPrint(report)
		}
	}

	if *query != "" {
		report, err := app.service.Ask(ctx, *query)
		if err != nil {
			log.Fatal().Err(err).Msg("Error answering question")
		}
		printReport(*query, report)
	}
}

type app struct {
	pipeline *pipeline.Pipeline
	service  *rag.Service
}

func newApp(cfg *config.Config) (*app, error) {
	tok := newTokenizer()

	em, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	st, err := newStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	chat, err := newChat(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	ix := index.New(em, st, time.Duration(cfg.Embedding.TimeoutSeconds)*time.Second)
	ck := chunker.New(tok, cfg.Chunking.WindowTokens, cfg.Chunking.OverlapFraction)

	manifest, err := pipeline.LoadManifest(cfg.Pipeline.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	pl := pipeline.New(ix, ck, manifest, pipeline.Config{
		Concurrency: cfg.Pipeline.Concurrency,
		OnError:     pipeline.ErrorMode(cfg.Pipeline.OnError),
	})

	rt := retriever.New(ix, tok, retriever.Config{
		TopK:           cfg.Retrieval.TopK,
		MinSimilarity:  cfg.Retrieval.MinSimilarity,
		DedupThreshold: cfg.Retrieval.DedupThreshold,
	})

	prices := session.DefaultPriceTable()
	if cfg.Prices != nil {
		prices = *cfg.Prices
	}
	sess := session.New(prices)

	svc := rag.New(rt, composer.New(chat), sess, cfg.Chat.Model, cfg.Pipeline.MaxAttempts)
	return &app{pipeline: pl, service: svc}, nil
}

// newTokenizer prefers the real BPE tokenizer and falls back to word
// counting when the encoding data cannot be loaded, e.g. offline.
func newTokenizer() tokenizer.Tokenizer {
	tok, err := tokenizer.NewTiktoken(tokenizer.DefaultEncoding)
	if err != nil {
		log.Warn().Err(err).Msg("tiktoken unavailable, using word tokenizer")
		return tokenizer.NewWords()
	}
	return tok
}

func newEmbedder(cfg config.ProviderConfig) (embedder.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return embedder.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "ollama":
		return embedder.NewOllama(cfg.BaseURL, cfg.Model)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func newChat(cfg config.ProviderConfig) (llm.Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout)
	case "ollama":
		return llm.NewOllama(cfg.BaseURL, cfg.Model, timeout)
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func newStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "chromem":
		return chromemstore.New(cfg.Path, cfg.Collection)
	case "memory":
		return memorystore.New(), nil
	case "pgvector":
		return pgvectorstore.New(context.Background(), pgvectorstore.Config{
			DSN:       cfg.DSN,
			Password:  cfg.Password,
			Driver:    cfg.Driver,
			Dimension: cfg.Dimension,
			Debug:     cfg.Debug,
		})
	case "qdrant":
		return qdrantstore.New(context.Background(), qdrantstore.Config{
			Host:       cfg.Host,
			Port:       cfg.Port,
			UseTLS:     cfg.UseTLS,
			Collection: cfg.Collection,
			Dimension:  uint64(cfg.Dimension),
		})
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func splitFiles(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func printReport(query string, report models.QueryReport) {
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Answer: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", report.Answer.Text)

	if len(report.Answer.Citations) > 0 {
		log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		for _, c := range report.Answer.Citations {
			fmt.Printf("  %s, page %d\n", c.Filename, c.Page)
		}
		fmt.Println()
	}

	fmt.Printf("Cost: $%.6f this call, $%.6f this session\n",
		report.CostThisCall, report.CumulativeCost)
}
