package main

import (
	"context"
	"fmt"

	"github.com/jonathan/lead-extractor/internal/chunking"
	"github.com/jonathan/lead-extractor/internal/config"
	"github.com/jonathan/lead-extractor/internal/db"
	"github.com/jonathan/lead-extractor/internal/llm"
	"github.com/jonathan/lead-extractor/internal/logging"
	"github.com/jonathan/lead-extractor/internal/retrieval"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// newTokenizer loads the tokenizer used for chunking. Replaced in tests,
// since the BPE ranks are downloaded on first use.
var newTokenizer = func() (chunking.Tokenizer, error) {
	return chunking.NewTiktoken(chunking.DefaultEncoding)
}

// app holds the dependencies assembled from configuration for one command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *llm.Registry
	metrics  *llm.Metrics
	gatherer prometheus.Gatherer
	closers  []func()
}

func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flags.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  llm.NewMetrics(promRegistry),
		gatherer: promRegistry,
	}, nil
}

// Close releases clients opened by the app.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

// buildRegistry returns the built-in registry, with defaultModel promoted to
// the default when set.
func buildRegistry(defaultModel string) (*llm.Registry, error) {
	reg := llm.DefaultRegistry()
	if defaultModel == "" {
		return reg, nil
	}
	spec, err := reg.Resolve(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("invalid default_model: %w", err)
	}
	spec.Default = true
	return reg.WithModel(spec)
}

// backends creates a backend for every provider with an API key.
func (a *app) backends(ctx context.Context) ([]llm.Backend, error) {
	var out []llm.Backend
	if a.cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: a.cfg.OpenAIAPIKey, BaseURL: a.cfg.OpenAIBaseURL})
		if err != nil {
			return nil, err
		}
		out = append(out, llm.NewOpenAIBackend(client))
	}
	if a.cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, a.cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		out = append(out, llm.NewGeminiBackend(client))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no model provider configured: set OPENAI_API_KEY or GEMINI_API_KEY")
	}
	return out, nil
}

func (a *app) invoker(ctx context.Context) (*llm.Invoker, error) {
	backends, err := a.backends(ctx)
	if err != nil {
		return nil, err
	}
	return llm.NewInvoker(llm.InvokerConfig{
		Registry:       a.registry,
		Backends:       backends,
		MaxConcurrency: a.cfg.MaxConcurrency,
		MaxAttempts:    uint(a.cfg.MaxAttempts),
		RetryDelay:     a.cfg.RetryDelay,
		Metrics:        a.metrics,
		Logger:         a.logger.Named("invoker"),
	})
}

// narrower builds the retrieval narrower on the configured embedding
// provider. With a Redis URL, document embeddings are cached; an unreachable
// Redis only disables the cache.
func (a *app) narrower(ctx context.Context) (*retrieval.Narrower, error) {
	var (
		embedder llm.Embedder
		model    string
	)
	switch a.cfg.EmbeddingProvider {
	case "gemini":
		client, err := llm.NewGeminiClient(ctx, a.cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini embeddings: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		e := llm.NewGeminiEmbedder(client, a.cfg.EmbeddingModel)
		embedder, model = e, e.Model()
	default:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{APIKey: a.cfg.OpenAIAPIKey, BaseURL: a.cfg.OpenAIBaseURL})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		e := llm.NewOpenAIEmbedder(client, a.cfg.EmbeddingModel)
		embedder, model = e, e.Model()
	}

	if a.cfg.RedisURL != "" {
		client, err := retrieval.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			a.logger.Warn("embedding cache disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
			embedder = retrieval.NewCachedEmbedder(embedder, client, retrieval.CacheOptions{
				Model:  model,
				TTL:    a.cfg.EmbeddingCacheTTL,
				Logger: a.logger.Named("embedding_cache"),
			})
		}
	}

	n := retrieval.NewNarrower(embedder)
	n.K = a.cfg.RetrievalK
	return n, nil
}

// store connects to the extractor database.
func (a *app) store(ctx context.Context) (*db.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for stored extractors")
	}
	store, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// modelCalls sums the model call counter across labels.
func (a *app) modelCalls() float64 {
	families, err := a.gatherer.Gather()
	if err != nil {
		return 0
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != "extraction_model_calls_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
