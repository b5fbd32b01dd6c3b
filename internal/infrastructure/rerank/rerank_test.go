package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

func TestOverlapScorerPrefersMatchingPassage(t *testing.T) {
	scorer := NewOverlapScorer()
	scores, err := scorer.Score(context.Background(), "Wie hoch ist der Zusatzbeitrag?", []string{
		"Das Bonusprogramm belohnt Vorsorge.",
		"Der Zusatzbeitrag der AOK ist regional verschieden und hoch.",
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[1] <= scores[0] {
		t.Fatalf("expected matching passage to win: %v", scores)
	}
	if scores[0] != 0 {
		t.Fatalf("expected zero for unrelated passage, got %v", scores[0])
	}
}

func TestOverlapScorerCompoundPrefix(t *testing.T) {
	scores, err := NewOverlapScorer().Score(context.Background(), "Zahn Kosten", []string{"Festzuschuss für Zahnersatz", "Krankengeld"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores[0] <= scores[1] {
		t.Fatalf("expected prefix hit to score higher: %v", scores)
	}
}

func TestCrossEncoderMapsScoresBackToInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Query != "ePA" || len(req.Texts) != 3 || req.Model != "bge-reranker" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 2, Score: 0.9}, {Index: 0, Score: 0.5}, {Index: 1, Score: 0.1}})
	}))
	defer srv.Close()

	ce := NewCrossEncoder(srv.URL, "bge-reranker", time.Second, nil)
	scores, err := ce.Score(context.Background(), "ePA", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	want := []float64{0.5, 0.1, 0.9}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("scores[%d] = %v, want %v", i, scores[i], want[i])
		}
	}
}

func TestCrossEncoderRetriesUnavailableUpstream(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}})
	}))
	defer srv.Close()

	executor := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
	})
	scores, err := NewCrossEncoder(srv.URL, "", time.Second, executor).Score(context.Background(), "q", []string{"p"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if scores[0] != 1 || calls.Load() != 2 {
		t.Fatalf("unexpected scores=%v calls=%d", scores, calls.Load())
	}
}

func TestCrossEncoderFailures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		temporary bool
	}{
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}})
			},
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad", http.StatusBadRequest)
			},
		},
		{
			name: "gateway down",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			temporary: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewCrossEncoder(srv.URL, "", time.Second, nil).Score(context.Background(), "q", []string{"a", "b"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.IsKind(err, domain.ErrTemporary); got != tc.temporary {
				t.Fatalf("temporary = %v, want %v (%v)", got, tc.temporary, err)
			}
		})
	}
}

func TestCrossEncoderEmptyPassagesSkipsCall(t *testing.T) {
	scores, err := NewCrossEncoder("http://127.0.0.1:0", "", time.Second, nil).Score(context.Background(), "q", nil)
	if err != nil || len(scores) != 0 {
		t.Fatalf("unexpected %v %v", scores, err)
	}
}
