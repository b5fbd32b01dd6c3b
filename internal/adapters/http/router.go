// Package httpadapter serves the question API, an OpenAI-compatible chat
// surface, health and metrics over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/config"
	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
	"github.com/kirillkom/aok-rag-assistant/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Router struct {
	answerer    ports.QuestionAnswerer
	httpMetrics *metrics.HTTPServerMetrics
	logger      *slog.Logger
	checks      map[string]HealthCheck

	openAICompatModelID          string
	openAICompatStreamChunkChars int
	rateLimitRPS                 float64
	rateLimitBurst               int
	maxInFlight                  int
	backpressureWait             time.Duration
	requestTimeout               time.Duration
}

func NewRouter(cfg config.Config, answerer ports.QuestionAnswerer, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics(serviceName)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		answerer:    answerer,
		httpMetrics: httpMetrics,
		logger:      logger,
		checks:      map[string]HealthCheck{},

		openAICompatModelID:          cfg.OpenAICompatModelID,
		openAICompatStreamChunkChars: cfg.OpenAICompatStreamChunkChars,
		rateLimitRPS:                 cfg.APIRateLimitRPS,
		rateLimitBurst:               cfg.APIRateLimitBurst,
		maxInFlight:                  cfg.APIMaxInFlight,
		backpressureWait:             cfg.BackpressureWait(),
		requestTimeout:               cfg.RequestTimeout(),
	}
}

// WithHealthCheck registers a dependency probe for /healthz.
func (rt *Router) WithHealthCheck(name string, check HealthCheck) *Router {
	if check != nil {
		rt.checks[name] = check
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/ask", rt.ask)
	api.HandleFunc("/v1/models", rt.listModels)
	api.HandleFunc("/v1/chat/completions", rt.chatCompletions)

	guarded := chain(api,
		withRateLimit(rt.rateLimitRPS, rt.rateLimitBurst, func() {
			rt.httpMetrics.RecordRateLimited(serviceName)
		}),
		withBackpressure(rt.maxInFlight, rt.backpressureWait, func() {
			rt.httpMetrics.RecordOverloadRejected(serviceName)
		}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.httpMetrics.Handler())
	mux.Handle("/v1/", guarded)

	return chain(mux,
		withRequestID(),
		withAccessLog(rt.logger),
		func(next http.Handler) http.Handler { return rt.httpMetrics.Middleware(serviceName, next) },
	)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if len(rt.checks) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(rt.checks))
	for name := range rt.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := rt.checks[name](ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question string `json:"question"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	resp, err := rt.invoke(r.Context(), "ask", req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// invoke runs one guarded invocation under the request timeout and records
// its outcome.
func (rt *Router) invoke(ctx context.Context, endpoint, question string) (*domain.Response, error) {
	if rt.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := rt.answerer.Invoke(ctx, question)
	duration := time.Since(start)
	if err != nil {
		rt.httpMetrics.RecordFailure(serviceName, endpoint, err)
		rt.logger.Error("rag_invoke_failed",
			"request_id", requestIDFromContext(ctx),
			"endpoint", endpoint,
			"error_kind", metrics.ErrorKind(err),
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000.0,
		)
		return nil, err
	}

	rt.httpMetrics.RecordAnswer(serviceName, endpoint, resp, duration)
	rt.logger.Info("rag_answer",
		"request_id", requestIDFromContext(ctx),
		"endpoint", endpoint,
		"route", string(resp.Route),
		"docs", len(resp.Docs),
		"citations", len(resp.Citations),
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)
	return resp, nil
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": publicErrorMessage(status, err), "kind": metrics.ErrorKind(err)})
}
