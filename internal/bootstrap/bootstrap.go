package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/config"
	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
	"github.com/kirillkom/aok-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/corpus"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/fetcher"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/lexical/sqlitefts"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/rerank"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/vector/badgerstore"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/vector/qdrant"
)

const rerankTimeout = 30 * time.Second

// App holds the serving graph shared by the api, worker and mcp binaries.
type App struct {
	Config       config.Config
	Logger       *slog.Logger
	Answerer     ports.QuestionAnswerer
	Interactions *postgres.InteractionRepository
	HealthChecks map[string]func(context.Context) error

	// Executor guards every upstream call of the graph; binaries reuse it
	// for their own transports.
	Executor *resilience.Executor

	closers []func() error
}

type options struct {
	observer resilience.Observer
}

type Option func(*options)

// WithDependencyObserver reports retries and breaker transitions of
// upstream calls, typically to metrics.DependencyMetrics.
func WithDependencyObserver(obs resilience.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New loads the lexical corpus, connects the vector store and model
// backends and assembles the guardrail router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	app := &App{
		Config:       cfg,
		Logger:       logger,
		HealthChecks: map[string]func(context.Context) error{},
		Executor:     NewExecutor(cfg, logger, o.observer),
	}
	if err := app.build(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	executor := a.Executor

	lexical, err := a.openLexical(ctx)
	if err != nil {
		return err
	}

	embedder, generator, err := a.models(executor)
	if err != nil {
		return err
	}

	vectors, err := a.vectorStore(executor)
	if err != nil {
		return err
	}

	retriever := usecase.NewFusionRetriever(
		lexical,
		usecase.NewDenseSearcher(embedder, vectors),
		usecase.FusionWeights{
			Lexical: cfg.RAGLexicalWeight,
			Dense:   cfg.RAGDenseWeight,
			RRFK:    cfg.RAGFusionRRFK,
		},
	)
	reranker := usecase.NewReranker(a.scorer(executor))

	var answerer ports.QuestionAnswerer = usecase.NewRouter(retriever, reranker, generator, usecase.RouterConfig{
		PoolSize:      cfg.RAGPoolSize,
		TopK:          cfg.RAGTopK,
		MinEvidence:   cfg.RAGMinEvidence,
		RerankEnabled: cfg.RerankEnabled,
		Prompt: usecase.PromptLimits{
			MaxContexts:      cfg.RAGMaxContexts,
			MaxContextChars:  cfg.RAGMaxContextChars,
			DedupPrefixChars: cfg.RAGDedupPrefixChars,
		},
	}, a.Logger)

	if cfg.PostgresDSN != "" {
		repo, err := a.openInteractions(ctx)
		if err != nil {
			return err
		}
		a.Interactions = repo
		answerer = usecase.NewRecordingAnswerer(answerer, repo, a.Logger)
	}

	a.Answerer = answerer
	return nil
}

func (a *App) openLexical(ctx context.Context) (*sqlitefts.Index, error) {
	chunks, err := corpus.NewFile(a.Config.CorpusPath).Load()
	if err != nil {
		return nil, err
	}
	index, err := sqlitefts.Open(a.Config.LexicalDBPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "open lexical index", err)
	}
	a.closers = append(a.closers, index.Close)

	if err := index.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index corpus: %w", err)
	}
	a.Logger.Info("lexical_index_ready", "corpus", a.Config.CorpusPath, "chunks", len(chunks))
	return index, nil
}

func (a *App) models(executor *resilience.Executor) (ports.Embedder, ports.Generator, error) {
	return buildModels(a.Config, executor, a.HealthChecks)
}

func (a *App) vectorStore(executor *resilience.Executor) (ports.VectorStore, error) {
	store, closeFn, err := buildVectorStore(a.Config, executor, a.Logger, a.HealthChecks)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}
	return store, nil
}

func (a *App) scorer(executor *resilience.Executor) ports.RelevanceScorer {
	if a.Config.RerankURL == "" {
		return rerank.NewOverlapScorer()
	}
	return rerank.NewCrossEncoder(a.Config.RerankURL, a.Config.RerankModel, rerankTimeout, executor)
}

func (a *App) openInteractions(ctx context.Context) (*postgres.InteractionRepository, error) {
	db, err := postgres.OpenDB(ctx, a.Config.PostgresDSN)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "open postgres", err)
	}
	a.closers = append(a.closers, db.Close)

	repo := postgres.NewInteractionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.HealthChecks["postgres"] = db.PingContext
	return repo, nil
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close_failed", "error", err)
		}
	}
	a.closers = nil
}

// Ingestor is the offline corpus-building graph used by ragctl.
type Ingestor struct {
	UseCase *usecase.CorpusIngestUseCase

	closeFn func() error
}

func NewIngestor(cfg config.Config, logger *slog.Logger) (*Ingestor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := NewExecutor(cfg, logger, nil)

	embedder, _, err := buildModels(cfg, executor, nil)
	if err != nil {
		return nil, err
	}
	vectors, closeFn, err := buildVectorStore(cfg, executor, logger, nil)
	if err != nil {
		return nil, err
	}
	cache, err := localfs.New(cfg.StoragePath)
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, domain.WrapError(domain.ErrConfiguration, "init raw cache", err)
	}

	uc := usecase.NewCorpusIngestUseCase(
		fetcher.New(time.Duration(cfg.FetchTimeout)*time.Second, executor),
		cache,
		extractor.NewRegistry(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		vectors,
		corpus.NewFile(cfg.CorpusPath),
		usecase.IngestConfig{
			Workers:        cfg.IngestWorkers,
			EmbedBatchSize: cfg.EmbedBatchSize,
		},
		logger,
	)
	return &Ingestor{UseCase: uc, closeFn: closeFn}, nil
}

func (i *Ingestor) Close() error {
	if i.closeFn == nil {
		return nil
	}
	return i.closeFn()
}

// NewExecutor maps the resilience keys of cfg onto an executor. observer
// may be nil.
func NewExecutor(cfg config.Config, logger *slog.Logger, observer resilience.Observer) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff(),
			MaxBackoff:     cfg.RetryMaxBackoff(),
			Multiplier:     cfg.RetryMultiplier,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.BreakerEnabled,
			MinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
			FailureRatio:     cfg.BreakerFailureRatio,
			OpenTimeout:      cfg.BreakerOpenTimeout(),
			HalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		},
		Logger:   logger,
		Observer: observer,
	})
}

func buildModels(
	cfg config.Config,
	executor *resilience.Executor,
	checks map[string]func(context.Context) error,
) (ports.Embedder, ports.Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		oc := openai.Config{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			EmbedModel:  cfg.OpenAIEmbedModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			BatchSize:   cfg.EmbedBatchSize,
		}
		embedder, err := openai.NewEmbedder(oc, executor)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrConfiguration, "init openai embedder", err)
		}
		generator, err := openai.NewGenerator(oc, executor)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrConfiguration, "init openai generator", err)
		}
		return embedder, generator, nil
	case "ollama", "":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			Temperature: cfg.LLMTemperature,
			NumPredict:  cfg.LLMMaxTokens,
		}, executor)
		if checks != nil {
			checks["ollama"] = client.Ping
		}
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	default:
		return nil, nil, domain.WrapError(domain.ErrConfiguration, "init models",
			fmt.Errorf("unknown llm provider %q", cfg.LLMProvider))
	}
}

func buildVectorStore(
	cfg config.Config,
	executor *resilience.Executor,
	logger *slog.Logger,
	checks map[string]func(context.Context) error,
) (ports.VectorStore, func() error, error) {
	switch cfg.VectorBackend {
	case "badger":
		store, err := badgerstore.Open(cfg.BadgerPath, logger)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrConfiguration, "open badger store", err)
		}
		return store, store.Close, nil
	case "qdrant", "":
		client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
		if checks != nil {
			checks["qdrant"] = client.Ping
		}
		return client, nil, nil
	default:
		return nil, nil, domain.WrapError(domain.ErrConfiguration, "init vector store",
			errors.New("unknown vector backend "+cfg.VectorBackend))
	}
}
