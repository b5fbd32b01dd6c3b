package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestHTTPServerMetricsRecordsRoutesAndFailures(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	m.RecordAnswer("rag-api", "ask", &domain.Response{Route: domain.RouteGenerated, Docs: []domain.Passage{{}, {}}}, 50*time.Millisecond)
	m.RecordAnswer("rag-api", "ask", &domain.Response{Route: domain.RouteNoEvidence}, time.Millisecond)
	m.RecordFailure("rag-api", "ask", domain.WrapError(domain.ErrGenerationFailure, "generate", errors.New("boom")))

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`aok_rag_routes_total{endpoint="ask",route="generated",service="rag-api"} 1`,
		`aok_rag_no_evidence_total{endpoint="ask",service="rag-api"} 1`,
		`aok_rag_failures_total{endpoint="ask",kind="generation_failure",service="rag-api"} 1`,
		`aok_rag_returned_docs_sum{endpoint="ask",service="rag-api"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q\n%s", want, body)
		}
	}
}

func TestHTTPServerMetricsMiddlewareCountsStatus(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	handler := m.Middleware("rag-api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/ask", nil))

	body := scrape(t, m.Handler())
	want := `aok_http_requests_total{method="POST",path="/v1/ask",service="rag-api",status="418"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %q in\n%s", want, body)
	}
}

func TestWorkerMetricsTrackAsk(t *testing.T) {
	m := NewWorkerMetrics("rag-worker")
	m.TrackAsk()("emergency", nil)
	m.TrackAsk()("", domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("down")))
	m.ObserveReplySize(300)

	body := scrape(t, m.Handler())
	for _, want := range []string{
		`aok_worker_asks_total{outcome="ok",route="emergency",service="rag-worker"} 1`,
		`aok_worker_asks_total{outcome="retrieval_unavailable",route="none",service="rag-worker"} 1`,
		`aok_worker_asks_in_flight{service="rag-worker"} 0`,
		`aok_worker_reply_bytes_count{service="rag-worker"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q\n%s", want, body)
		}
	}
}

func TestDependencyMetricsSharesWorkerRegistry(t *testing.T) {
	w := NewWorkerMetrics("rag-worker")
	d := NewDependencyMetrics(w.Registry())
	d.ObserveRetry("ollama.generate")
	d.ObserveRetry("ollama.generate")
	d.ObserveBreakerState("qdrant.search", "open")

	body := scrape(t, w.Handler())
	for _, want := range []string{
		`aok_dependency_retries_total{operation="ollama.generate"} 2`,
		`aok_dependency_breaker_state{operation="qdrant.search",state="open"} 1`,
		`aok_dependency_breaker_state{operation="qdrant.search",state="closed"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q\n%s", want, body)
		}
	}
}

func TestErrorKind(t *testing.T) {
	if got := ErrorKind(errors.New("plain")); got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := ErrorKind(domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x"))); got != "invalid_input" {
		t.Fatalf("expected invalid_input, got %s", got)
	}
}
