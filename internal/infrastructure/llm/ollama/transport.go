package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

// endpoint is one route of the Ollama REST API.
type endpoint struct {
	method string
	path   string
	name   string
}

var (
	embedEndpoint    = endpoint{http.MethodPost, "/api/embed", "embed"}
	generateEndpoint = endpoint{http.MethodPost, "/api/generate", "generate"}
	versionEndpoint  = endpoint{http.MethodGet, "/api/version", "ping"}
)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// roundTrip sends in as JSON (when non-nil) and decodes the answer into out
// (when non-nil). Non-2xx answers become *resilience.HTTPStatusError.
func (c *Client) roundTrip(ctx context.Context, ep endpoint, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", ep.name, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.baseURL+ep.path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", ep.name, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", ep.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("ollama", ep.name, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", ep.name, err)
	}
	return nil
}

// call is roundTrip under the shared executor.
func (c *Client) call(ctx context.Context, ep endpoint, in, out any) error {
	err := c.executor.Execute(ctx, "ollama."+ep.name, func(callCtx context.Context) error {
		return c.roundTrip(callCtx, ep, in, out)
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("ollama "+ep.name, err)
}
