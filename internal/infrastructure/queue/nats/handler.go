package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

// Observer receives per-question outcomes; metrics.WorkerMetrics implements it.
type Observer interface {
	TrackAsk() func(route string, err error)
	ObserveReplySize(bytes int)
}

// AskHandler adapts a QuestionAnswerer to raw request/reply payloads.
func AskHandler(answerer ports.QuestionAnswerer, observer Observer, logger *slog.Logger, timeout time.Duration) func(context.Context, []byte) []byte {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, data []byte) []byte {
		start := time.Now()
		done := func(string, error) {}
		if observer != nil {
			done = observer.TrackAsk()
		}

		resp, err := answer(ctx, answerer, data, timeout)
		if err != nil {
			done("", err)
			logger.Error("worker_ask_failed", "error", err, "duration", time.Since(start))
			return encodeError(err)
		}
		done(string(resp.Route), nil)

		out, err := json.Marshal(resp)
		if err != nil {
			return encodeError(err)
		}
		if observer != nil {
			observer.ObserveReplySize(len(out))
		}
		logger.Info("worker_ask_done", "route", resp.Route, "docs", len(resp.Docs), "duration", time.Since(start))
		return out
	}
}

func answer(ctx context.Context, answerer ports.QuestionAnswerer, data []byte, timeout time.Duration) (*domain.Response, error) {
	var req AskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode ask request", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode ask request", errors.New("question is required"))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return answerer.Invoke(ctx, req.Question)
}

func encodeError(err error) []byte {
	out, _ := json.Marshal(errorReply{Error: err.Error(), Kind: domain.KindLabel(err)})
	return out
}
