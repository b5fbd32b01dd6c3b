// Package openai adapts OpenAI-compatible chat and embedding endpoints
// through langchaingo.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	EmbedModel  string
	Temperature float64
	MaxTokens   int
	BatchSize   int
}

func newLLM(cfg Config) (*lcopenai.LLM, error) {
	token := cfg.APIKey
	if token == "" {
		// local OpenAI-compatible servers accept any token
		token = "none"
	}
	opts := []lcopenai.Option{
		lcopenai.WithToken(token),
		lcopenai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if cfg.EmbedModel != "" {
		opts = append(opts, lcopenai.WithEmbeddingModel(cfg.EmbedModel))
	}
	client, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return client, nil
}

type Generator struct {
	model       llms.Model
	temperature float64
	maxTokens   int
	executor    *resilience.Executor
}

func NewGenerator(cfg Config, executor *resilience.Executor) (*Generator, error) {
	client, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}
	return &Generator{
		model:       client,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		executor:    executor,
	}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	text, err := resilience.Do(ctx, g.executor, "openai.generate", func(callCtx context.Context) (string, error) {
		return llms.GenerateFromSinglePrompt(callCtx, g.model, prompt, opts...)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapTemporary("openai generate", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("openai generate: empty completion")
	}
	return text, nil
}

type Embedder struct {
	embedder embeddings.Embedder
	executor *resilience.Executor
}

func NewEmbedder(cfg Config, executor *resilience.Executor) (*Embedder, error) {
	client, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}
	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return &Embedder{embedder: embedder, executor: executor}, nil
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := resilience.Do(ctx, e.executor, "openai.embed", func(callCtx context.Context) ([][]float32, error) {
		return e.embedder.EmbedDocuments(callCtx, texts)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := resilience.Do(ctx, e.executor, "openai.embed_query", func(callCtx context.Context) ([]float32, error) {
		return e.embedder.EmbedQuery(callCtx, text)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed query", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("openai embed query: empty vector")
	}
	return vector, nil
}
