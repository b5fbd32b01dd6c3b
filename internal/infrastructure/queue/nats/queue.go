// Package nats carries ask requests over NATS request/reply. Workers join a
// queue group so that each request is answered by exactly one of them.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "rag.ask"
	DefaultQueue   = "rag-workers"
)

type Queue struct {
	conn     *nats.Conn
	subject  string
	queue    string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	Subject              string
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	subject := options.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	queue := options.QueueGroup
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := nats.Connect(
		url,
		nats.Name("aok-rag-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		queue:    queue,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// AskRequest is the request payload on the ask subject.
type AskRequest struct {
	Question string `json:"question"`
}

// errorReply is sent instead of a Response when an invocation fails.
type errorReply struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Ask sends one question and waits for a worker reply.
func (q *Queue) Ask(ctx context.Context, question string) (*domain.Response, error) {
	payload, err := json.Marshal(AskRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("marshal ask request: %w", err)
	}

	msg, err := resilience.Do(ctx, q.executor, "nats.ask", func(callCtx context.Context) (*nats.Msg, error) {
		m, err := q.conn.RequestWithContext(callCtx, q.subject, payload)
		if err != nil {
			return nil, fmt.Errorf("nats request: %w", err)
		}
		return m, nil
	}, classifyAsk)
	if err != nil {
		return nil, asTemporary(err)
	}
	return decodeReply(msg.Data)
}

func decodeReply(data []byte) (*domain.Response, error) {
	var failure errorReply
	if err := json.Unmarshal(data, &failure); err == nil && failure.Error != "" {
		return nil, replyError(failure)
	}
	var resp domain.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode ask reply: %w", err)
	}
	return &resp, nil
}

func replyError(r errorReply) error {
	if kind, ok := domain.KindByLabel(r.Kind); ok {
		return domain.WrapError(kind, "remote ask", errors.New(r.Error))
	}
	return fmt.Errorf("remote ask: %s", r.Error)
}

// Serve answers requests on the ask subject until ctx is cancelled, then
// drains the subscription so in-flight requests still get a reply.
func (q *Queue) Serve(ctx context.Context, handler func(context.Context, []byte) []byte) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queue, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		reply := handler(ctx, msg.Data)
		if msg.Reply == "" {
			q.logger.Warn("nats_request_without_reply", "subject", msg.Subject)
			return
		}
		if err := msg.Respond(reply); err != nil {
			q.logger.Error("nats_respond_failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	q.logger.Info("nats_worker_subscribed", "subject", q.subject, "queue", q.queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
