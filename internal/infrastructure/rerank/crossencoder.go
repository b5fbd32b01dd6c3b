// Package rerank holds relevance scorers for the second retrieval stage.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

// CrossEncoder calls a text-embeddings-inference style /rerank endpoint.
type CrossEncoder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewCrossEncoder(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *CrossEncoder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CrossEncoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one score per passage in input order.
func (c *CrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}

	results, err := resilience.Do(ctx, c.executor, "rerank.score", func(callCtx context.Context) ([]rerankResult, error) {
		return c.post(callCtx, rerankRequest{Model: c.model, Query: query, Texts: passages})
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("rerank score", err)
	}
	if len(results) != len(passages) {
		return nil, fmt.Errorf("rerank: got %d scores for %d passages", len(results), len(passages))
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(passages) || seen[r.Index] {
			return nil, fmt.Errorf("rerank: invalid result index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}
	return scores, nil
}

func (c *CrossEncoder) post(ctx context.Context, payload rerankRequest) ([]rerankResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPStatusError("rerank", "score", resp)
	}
	var out []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return out, nil
}
