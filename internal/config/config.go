package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const configFileEnv = "RAG_CONFIG_FILE"

type Config struct {
	APIPort  string `toml:"api_port" validate:"required,numeric"`
	LogLevel string `toml:"log_level" validate:"oneof=debug info warn error"`

	CorpusPath    string `toml:"corpus_path" validate:"required"`
	LexicalDBPath string `toml:"lexical_db_path"`

	VectorBackend    string `toml:"vector_backend" validate:"oneof=qdrant badger"`
	QdrantURL        string `toml:"qdrant_url" validate:"required_if=VectorBackend qdrant,omitempty,url"`
	QdrantCollection string `toml:"qdrant_collection" validate:"required_if=VectorBackend qdrant"`
	BadgerPath       string `toml:"badger_path"`

	LLMProvider      string  `toml:"llm_provider" validate:"oneof=ollama openai"`
	OllamaURL        string  `toml:"ollama_url" validate:"required_if=LLMProvider ollama,omitempty,url"`
	OllamaGenModel   string  `toml:"ollama_gen_model"`
	OllamaEmbedModel string  `toml:"ollama_embed_model"`
	LLMTemperature   float64 `toml:"llm_temperature" validate:"gte=0,lte=2"`
	LLMMaxTokens     int     `toml:"llm_max_tokens" validate:"gt=0"`
	OpenAIBaseURL    string  `toml:"openai_base_url" validate:"omitempty,url"`
	OpenAIAPIKey     string  `toml:"openai_api_key" validate:"required_if=LLMProvider openai"`
	OpenAIModel      string  `toml:"openai_model" validate:"required_if=LLMProvider openai"`
	OpenAIEmbedModel string  `toml:"openai_embed_model" validate:"required_if=LLMProvider openai"`

	RerankEnabled bool   `toml:"rerank_enabled"`
	RerankURL     string `toml:"rerank_url" validate:"omitempty,url"`
	RerankModel   string `toml:"rerank_model"`

	RAGPoolSize         int     `toml:"rag_pool_size" validate:"gt=0"`
	RAGTopK             int     `toml:"rag_top_k" validate:"gt=0,ltefield=RAGPoolSize"`
	RAGLexicalWeight    float64 `toml:"rag_lexical_weight" validate:"gte=0"`
	RAGDenseWeight      float64 `toml:"rag_dense_weight" validate:"gte=0"`
	RAGFusionRRFK       int     `toml:"rag_fusion_rrf_k" validate:"gt=0"`
	RAGMinEvidence      int     `toml:"rag_min_evidence" validate:"gt=0"`
	RAGMaxContexts      int     `toml:"rag_max_contexts" validate:"gt=0"`
	RAGMaxContextChars  int     `toml:"rag_max_context_chars" validate:"gt=0"`
	RAGDedupPrefixChars int     `toml:"rag_dedup_prefix_chars" validate:"gt=0"`

	PostgresDSN string `toml:"postgres_dsn"`

	NATSURL     string `toml:"nats_url"`
	NATSSubject string `toml:"nats_subject" validate:"required"`
	NATSQueue   string `toml:"nats_queue" validate:"required"`

	APIRateLimitRPS   float64 `toml:"api_rate_limit_rps" validate:"gte=0"`
	APIRateLimitBurst int     `toml:"api_rate_limit_burst" validate:"gte=0"`
	APIMaxInFlight    int     `toml:"api_max_in_flight" validate:"gte=0"`
	APIBackpressureMS int     `toml:"api_backpressure_wait_ms" validate:"gte=0"`
	APIRequestTimeout int     `toml:"api_request_timeout_seconds" validate:"gt=0"`

	OpenAICompatModelID          string `toml:"openai_compat_model_id"`
	OpenAICompatStreamChunkChars int    `toml:"openai_compat_stream_chunk_chars" validate:"gte=0"`

	ChunkSize      int    `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap   int    `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	IngestWorkers  int    `toml:"ingest_workers" validate:"gt=0"`
	EmbedBatchSize int    `toml:"embed_batch_size" validate:"gt=0"`
	StoragePath    string `toml:"storage_path"`
	FetchTimeout   int    `toml:"fetch_timeout_seconds" validate:"gt=0"`

	RetryMaxAttempts        int     `toml:"retry_max_attempts" validate:"gt=0"`
	RetryInitialBackoffMS   int     `toml:"retry_initial_backoff_ms" validate:"gte=0"`
	RetryMaxBackoffMS       int     `toml:"retry_max_backoff_ms" validate:"gte=0"`
	RetryMultiplier         float64 `toml:"retry_multiplier" validate:"gte=1"`
	BreakerEnabled          bool    `toml:"breaker_enabled"`
	BreakerMinRequests      int     `toml:"breaker_min_requests" validate:"gte=0"`
	BreakerFailureRatio     float64 `toml:"breaker_failure_ratio" validate:"gte=0,lte=1"`
	BreakerOpenTimeoutSec   int     `toml:"breaker_open_timeout_seconds" validate:"gte=0"`
	BreakerHalfOpenMaxCalls int     `toml:"breaker_half_open_max_calls" validate:"gte=0"`

	WorkerMetricsPort string `toml:"worker_metrics_port" validate:"omitempty,numeric"`
}

func Defaults() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		CorpusPath: "data/processed/chunks.jsonl",

		VectorBackend:    "qdrant",
		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "aok",
		BadgerPath:       "data/processed/vectors",

		LLMProvider:      "ollama",
		OllamaURL:        "http://localhost:11434",
		OllamaGenModel:   "llama3.2:3b",
		OllamaEmbedModel: "bge-m3",
		LLMTemperature:   0.2,
		LLMMaxTokens:     256,

		RerankEnabled: true,
		RerankModel:   "BAAI/bge-reranker-v2-m3",

		RAGPoolSize:         10,
		RAGTopK:             4,
		RAGLexicalWeight:    0.45,
		RAGDenseWeight:      0.55,
		RAGFusionRRFK:       60,
		RAGMinEvidence:      1,
		RAGMaxContexts:      4,
		RAGMaxContextChars:  1200,
		RAGDedupPrefixChars: 200,

		NATSURL:     "nats://localhost:4222",
		NATSSubject: "rag.ask",
		NATSQueue:   "rag-workers",

		APIBackpressureMS: 250,
		APIRequestTimeout: 60,

		OpenAICompatModelID:          "aok-rag-v1",
		OpenAICompatStreamChunkChars: 120,

		ChunkSize:      1000,
		ChunkOverlap:   200,
		IngestWorkers:  4,
		EmbedBatchSize: 16,
		StoragePath:    "data/raw",
		FetchTimeout:   60,

		RetryMaxAttempts:        3,
		RetryInitialBackoffMS:   100,
		RetryMaxBackoffMS:       400,
		RetryMultiplier:         2.0,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeoutSec:   30,
		BreakerHalfOpenMaxCalls: 2,

		WorkerMetricsPort: "9090",
	}
}

// Load layers defaults, the optional TOML file named by RAG_CONFIG_FILE and
// environment overrides, then validates the result.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, domain.WrapError(domain.ErrConfiguration, "load config file", err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIPort = mustEnv("API_PORT", cfg.APIPort)
	cfg.LogLevel = strings.ToLower(mustEnv("LOG_LEVEL", cfg.LogLevel))

	cfg.CorpusPath = mustEnv("CORPUS_PATH", cfg.CorpusPath)
	cfg.LexicalDBPath = mustEnv("LEXICAL_DB_PATH", cfg.LexicalDBPath)

	cfg.VectorBackend = strings.ToLower(mustEnv("VECTOR_BACKEND", cfg.VectorBackend))
	cfg.QdrantURL = mustEnv("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantCollection = mustEnv("QDRANT_COLLECTION", cfg.QdrantCollection)
	cfg.BadgerPath = mustEnv("BADGER_PATH", cfg.BadgerPath)

	cfg.LLMProvider = strings.ToLower(mustEnv("LLM_PROVIDER", cfg.LLMProvider))
	cfg.OllamaURL = mustEnv("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaGenModel = mustEnv("OLLAMA_GEN_MODEL", cfg.OllamaGenModel)
	cfg.OllamaEmbedModel = mustEnv("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel)
	cfg.LLMTemperature = mustEnvFloat("LLM_TEMPERATURE", cfg.LLMTemperature)
	cfg.LLMMaxTokens = mustEnvInt("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	cfg.OpenAIBaseURL = mustEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIAPIKey = mustEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = mustEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAIEmbedModel = mustEnv("OPENAI_EMBED_MODEL", cfg.OpenAIEmbedModel)

	cfg.RerankEnabled = mustEnvBool("RERANK_ENABLED", cfg.RerankEnabled)
	cfg.RerankURL = mustEnv("RERANK_URL", cfg.RerankURL)
	cfg.RerankModel = mustEnv("RERANK_MODEL", cfg.RerankModel)

	cfg.RAGPoolSize = mustEnvInt("RAG_POOL_SIZE", cfg.RAGPoolSize)
	cfg.RAGTopK = mustEnvInt("RAG_TOP_K", cfg.RAGTopK)
	cfg.RAGLexicalWeight = mustEnvFloat("RAG_LEXICAL_WEIGHT", cfg.RAGLexicalWeight)
	cfg.RAGDenseWeight = mustEnvFloat("RAG_DENSE_WEIGHT", cfg.RAGDenseWeight)
	cfg.RAGFusionRRFK = mustEnvInt("RAG_FUSION_RRF_K", cfg.RAGFusionRRFK)
	cfg.RAGMinEvidence = mustEnvInt("RAG_MIN_EVIDENCE", cfg.RAGMinEvidence)
	cfg.RAGMaxContexts = mustEnvInt("RAG_MAX_CONTEXTS", cfg.RAGMaxContexts)
	cfg.RAGMaxContextChars = mustEnvInt("RAG_MAX_CONTEXT_CHARS", cfg.RAGMaxContextChars)
	cfg.RAGDedupPrefixChars = mustEnvInt("RAG_DEDUP_PREFIX_CHARS", cfg.RAGDedupPrefixChars)

	cfg.PostgresDSN = mustEnv("POSTGRES_DSN", cfg.PostgresDSN)

	cfg.NATSURL = mustEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = mustEnv("NATS_SUBJECT", cfg.NATSSubject)
	cfg.NATSQueue = mustEnv("NATS_QUEUE", cfg.NATSQueue)

	cfg.APIRateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)
	cfg.APIMaxInFlight = mustEnvInt("API_MAX_IN_FLIGHT", cfg.APIMaxInFlight)
	cfg.APIBackpressureMS = mustEnvInt("API_BACKPRESSURE_WAIT_MS", cfg.APIBackpressureMS)
	cfg.APIRequestTimeout = mustEnvInt("API_REQUEST_TIMEOUT_SECONDS", cfg.APIRequestTimeout)

	cfg.OpenAICompatModelID = mustEnv("OPENAI_COMPAT_MODEL_ID", cfg.OpenAICompatModelID)
	cfg.OpenAICompatStreamChunkChars = mustEnvInt("OPENAI_COMPAT_STREAM_CHUNK_CHARS", cfg.OpenAICompatStreamChunkChars)

	cfg.ChunkSize = mustEnvInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = mustEnvInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.IngestWorkers = mustEnvInt("INGEST_WORKERS", cfg.IngestWorkers)
	cfg.EmbedBatchSize = mustEnvInt("EMBED_BATCH_SIZE", cfg.EmbedBatchSize)
	cfg.StoragePath = mustEnv("STORAGE_PATH", cfg.StoragePath)
	cfg.FetchTimeout = mustEnvInt("FETCH_TIMEOUT_SECONDS", cfg.FetchTimeout)

	cfg.RetryMaxAttempts = mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	cfg.RetryInitialBackoffMS = mustEnvInt("RESILIENCE_RETRY_INITIAL_BACKOFF_MS", cfg.RetryInitialBackoffMS)
	cfg.RetryMaxBackoffMS = mustEnvInt("RESILIENCE_RETRY_MAX_BACKOFF_MS", cfg.RetryMaxBackoffMS)
	cfg.RetryMultiplier = mustEnvFloat("RESILIENCE_RETRY_MULTIPLIER", cfg.RetryMultiplier)
	cfg.BreakerEnabled = mustEnvBool("RESILIENCE_BREAKER_ENABLED", cfg.BreakerEnabled)
	cfg.BreakerMinRequests = mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", cfg.BreakerMinRequests)
	cfg.BreakerFailureRatio = mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", cfg.BreakerFailureRatio)
	cfg.BreakerOpenTimeoutSec = mustEnvInt("RESILIENCE_BREAKER_OPEN_TIMEOUT_SECONDS", cfg.BreakerOpenTimeoutSec)
	cfg.BreakerHalfOpenMaxCalls = mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", cfg.BreakerHalfOpenMaxCalls)

	cfg.WorkerMetricsPort = mustEnv("WORKER_METRICS_PORT", cfg.WorkerMetricsPort)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field as one ErrConfiguration.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.WrapError(domain.ErrConfiguration, "validate config", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return domain.WrapError(domain.ErrConfiguration, "validate config", errors.New(strings.Join(msgs, "; ")))
}

func (c Config) RetryInitialBackoff() time.Duration {
	return time.Duration(c.RetryInitialBackoffMS) * time.Millisecond
}

func (c Config) RetryMaxBackoff() time.Duration {
	return time.Duration(c.RetryMaxBackoffMS) * time.Millisecond
}

func (c Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.BreakerOpenTimeoutSec) * time.Second
}

func (c Config) BackpressureWait() time.Duration {
	return time.Duration(c.APIBackpressureMS) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.APIRequestTimeout) * time.Second
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
