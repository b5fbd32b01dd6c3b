package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

// pointNamespace derives stable point ids from chunk keys so re-ingesting the
// same chunk overwrites its point.
var pointNamespace = uuid.MustParse("5b0f6a52-8f3e-4c1e-9d0a-3f9a6c2e7b41")

const upsertBatchSize = 128

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	// ensuredSize is the vector size the collection was last created with.
	ensuredSize atomic.Int64
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type pointPayload struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

type point struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload pointPayload `json:"payload"`
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload struct {
			Text     string         `json:"text"`
			Metadata map[string]any `json:"metadata"`
		} `json:"payload"`
	} `json:"result"`
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

func PointID(chunk domain.Chunk) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunk.Key())).String()
}

func (c *Client) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:      PointID(chunk),
			Vector:  vectors[i],
			Payload: pointPayload{Text: chunk.Text, Metadata: chunk.Metadata},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	for batch := range slices.Chunk(points, upsertBatchSize) {
		if err := c.doJSON(ctx, http.MethodPut, url, upsertRequest{Points: batch}, nil, "upsert"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	var searchResp searchResponse
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req := searchRequest{Vector: queryVector, Limit: limit, WithPayload: true}
	if err := c.doJSON(ctx, http.MethodPost, url, req, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.ScoredChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		if strings.TrimSpace(r.Payload.Text) == "" {
			continue
		}
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{Text: r.Payload.Text, Metadata: stringMetadata(r.Payload.Metadata)},
			Score: r.Score,
		})
	}
	return out, nil
}

// Ping checks that the collection exists.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	var out map[string]any
	return c.doJSON(ctx, http.MethodGet, url, nil, &out, "collection_info")
}

// ensureCollection creates the collection once per vector size; a 409 means
// it already exists.
func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	if c.ensuredSize.Load() == int64(vectorSize) {
		return nil
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req := createCollectionRequest{Vectors: vectorParams{Size: vectorSize, Distance: "Cosine"}}
	err := c.doJSON(ctx, http.MethodPut, url, req, nil, "ensure_collection")
	if statusErr := asStatusError(err); statusErr != nil && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}
	c.ensuredSize.Store(int64(vectorSize))
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	var body []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = raw
	}

	err := c.executor.Execute(ctx, "qdrant."+operation, func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("qdrant "+operation, err)
}

func stringMetadata(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch typed := v.(type) {
		case nil:
			continue
		case string:
			out[k] = typed
		default:
			out[k] = fmt.Sprintf("%v", typed)
		}
	}
	return out
}
