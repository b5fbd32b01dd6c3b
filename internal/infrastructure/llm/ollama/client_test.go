package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
}

func TestGeneratorSendsPromptAndOptions(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  Die ePA ist freiwillig.  "}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "llama3.2:3b", "bge-m3", DefaultOptions(), testExecutor()))
	got, err := gen.Generate(context.Background(), "[SYSTEM]\nfrage")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Die ePA ist freiwillig." {
		t.Fatalf("unexpected completion %q", got)
	}
	if payload["prompt"] != "[SYSTEM]\nfrage" || payload["model"] != "llama3.2:3b" || payload["stream"] != false {
		t.Fatalf("unexpected payload %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["temperature"] != 0.2 || options["num_predict"] != float64(256) {
		t.Fatalf("unexpected options %v", options)
	}
}

func TestGeneratorRetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", DefaultOptions(), testExecutor()))
	if _, err := gen.Generate(context.Background(), "p"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", DefaultOptions(), testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error after exhausted retries, got %v", err)
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "bge-m3", DefaultOptions(), nil))
	got, err := embedder.EmbedQuery(context.Background(), "ePA")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(got))
	}
}
