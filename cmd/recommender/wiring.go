package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/chromemstore"
	"github.com/dshills/assessment-recommender/internal/config"
	"github.com/dshills/assessment-recommender/internal/embedder"
	"github.com/dshills/assessment-recommender/internal/llm"
	"github.com/dshills/assessment-recommender/internal/recommend"
	"github.com/dshills/assessment-recommender/internal/scraper"
	"github.com/dshills/assessment-recommender/internal/searcher"
	"github.com/dshills/assessment-recommender/internal/server"
	"github.com/dshills/assessment-recommender/internal/storage"
)

func newEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, error) {
	model := cfg.Embedding.Model
	// The default model names a Hugging Face checkpoint; other providers use their own default
	if cfg.Embedding.Provider != embedder.ProviderHuggingFace && model == embedder.DefaultHuggingFaceModel {
		model = ""
	}

	emb, err := embedder.New(ctx, embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     model,
		APIKey:    cfg.EmbeddingAPIKey(),
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		CacheSize: cfg.Embedding.CacheSize,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return emb, nil
}

// knowledgeBase is an opened index for the configured backend
type knowledgeBase struct {
	retriever recommend.Retriever
	loaded    server.IndexProbe
	close     func()
}

// openKnowledgeBase opens the index read side. A missing SQLite index
// leaves the retriever nil so queries report the knowledge base as not
// loaded while the process keeps serving.
func openKnowledgeBase(cfg *config.Config, emb embedder.Embedder, logger *zap.Logger) (*knowledgeBase, error) {
	switch cfg.Index.Backend {
	case config.BackendChromem:
		store, err := chromemstore.Open(cfg.Index.Dir, emb)
		if err != nil {
			return nil, err
		}
		if store.Count() == 0 {
			logger.Warn("knowledge base not loaded", zap.String("dir", cfg.Index.Dir), zap.String("backend", cfg.Index.Backend))
		}
		return &knowledgeBase{
			retriever: store,
			loaded:    func(context.Context) bool { return store.Count() > 0 },
			close:     func() {},
		}, nil

	default:
		if !storage.IndexExists(cfg.Index.Dir) {
			logger.Warn("knowledge base not loaded", zap.String("dir", cfg.Index.Dir), zap.String("backend", cfg.Index.Backend))
			return &knowledgeBase{
				loaded: func(context.Context) bool { return false },
				close:  func() {},
			}, nil
		}
		store, err := storage.OpenIndex(cfg.Index.Dir)
		if err != nil {
			return nil, err
		}
		return &knowledgeBase{
			retriever: searcher.NewSearcher(store, emb),
			loaded: func(ctx context.Context) bool {
				status, err := store.GetStatus(ctx)
				return err == nil && status.Loaded()
			},
			close: func() { _ = store.Close() },
		}, nil
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (*llm.GeminiGenerator, error) {
	return llm.NewGeminiGenerator(ctx, llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
	})
}

func newScraper(cfg *config.Config, logger *zap.Logger) *scraper.HTTPScraper {
	return scraper.New(scraper.Config{
		Timeout:  cfg.Scraper.Timeout,
		MaxBody:  cfg.Scraper.MaxBody,
		MaxChars: cfg.Scraper.MaxChars,
	}, logger.Named("scraper"))
}

// newOrchestrator wires the query pipeline around retriever
func newOrchestrator(ctx context.Context, cfg *config.Config, retriever recommend.Retriever, logger *zap.Logger) (*recommend.Orchestrator, error) {
	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	prompt, err := llm.LoadSystemPrompt(cfg.LLM.SystemPromptPath)
	if err != nil {
		return nil, err
	}

	return recommend.NewOrchestrator(retriever, generator, newScraper(cfg, logger), recommend.Options{
		SystemPrompt: prompt,
		TopK:         cfg.Retrieval.TopK,
		Logger:       logger.Named("recommend"),
	}), nil
}
