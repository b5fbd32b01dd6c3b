package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

type Options struct {
	Temperature float64
	NumPredict  int
	Timeout     time.Duration
}

func DefaultOptions() Options {
	return Options{Temperature: 0.2, NumPredict: 256, Timeout: 120 * time.Second}
}

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	opts       Options
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, opts Options, executor *resilience.Executor) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var response embedResponse
	if err := e.client.call(ctx, embedEndpoint, embedRequest{Model: e.client.embedModel, Input: texts}, &response); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Generator produces one non-streamed completion per prompt.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  g.client.genModel,
		Prompt: prompt,
		Options: generateOptions{
			Temperature: g.client.opts.Temperature,
			NumPredict:  g.client.opts.NumPredict,
		},
	}
	var response generateResponse
	if err := g.client.call(ctx, generateEndpoint, req, &response); err != nil {
		return "", err
	}
	text := strings.TrimSpace(response.Response)
	if text == "" {
		return "", errors.New("ollama generate: empty response")
	}
	return text, nil
}

// Ping checks that the server answers its version endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.roundTrip(ctx, versionEndpoint, nil, nil); err != nil {
		return resilience.WrapTemporary("ollama ping", err)
	}
	return nil
}
