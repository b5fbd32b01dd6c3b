package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

type answererFake struct {
	resp     *domain.Response
	err      error
	question string
	deadline bool
}

func (f *answererFake) Invoke(ctx context.Context, question string) (*domain.Response, error) {
	f.question = question
	_, f.deadline = ctx.Deadline()
	return f.resp, f.err
}

type observerFake struct {
	started    int
	route      string
	finished   error
	replyBytes int
}

func (o *observerFake) TrackAsk() func(string, error) {
	o.started++
	return func(route string, err error) {
		o.route = route
		o.finished = err
	}
}

func (o *observerFake) ObserveReplySize(n int) { o.replyBytes = n }

func TestAskHandlerRepliesWithResponse(t *testing.T) {
	answerer := &answererFake{resp: &domain.Response{Answer: "Ja.", Route: domain.RouteGenerated, Citations: []string{"- ePA → https://aok.de/epa"}}}
	observer := &observerFake{}
	handler := AskHandler(answerer, observer, nil, time.Second)

	reply := handler(context.Background(), []byte(`{"question":"Was ist die ePA?"}`))

	resp, err := decodeReply(reply)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.Answer != "Ja." || resp.Route != domain.RouteGenerated || len(resp.Citations) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if answerer.question != "Was ist die ePA?" || !answerer.deadline {
		t.Fatalf("unexpected invocation question=%q deadline=%v", answerer.question, answerer.deadline)
	}
	if observer.replyBytes != len(reply) {
		t.Fatalf("reply size %d, want %d", observer.replyBytes, len(reply))
	}
	if observer.started != 1 || observer.route != "generated" || observer.finished != nil {
		t.Fatalf("unexpected observer %+v", observer)
	}
}

func TestAskHandlerRejectsBadPayload(t *testing.T) {
	answerer := &answererFake{}
	handler := AskHandler(answerer, nil, nil, 0)

	for _, payload := range []string{`not json`, `{"question":"  "}`} {
		reply := handler(context.Background(), []byte(payload))
		var failure errorReply
		if err := json.Unmarshal(reply, &failure); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if failure.Kind != "invalid_input" {
			t.Fatalf("payload %q: unexpected kind %q", payload, failure.Kind)
		}
	}
	if answerer.question != "" {
		t.Fatal("answerer must not be called for invalid payloads")
	}
}

func TestAskHandlerPropagatesErrorKind(t *testing.T) {
	answerer := &answererFake{err: domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("qdrant down"))}
	reply := AskHandler(answerer, nil, nil, 0)(context.Background(), []byte(`{"question":"ePA"}`))

	_, err := decodeReply(reply)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected retrieval unavailable, got %v", err)
	}
}

func TestDecodeReplyUnknownKind(t *testing.T) {
	_, err := decodeReply([]byte(`{"error":"boom","kind":"internal"}`))
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClassifyAsk(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{err: nats.ErrNoServers, retryable: true},
		{err: fmt.Errorf("nats request: %w", nats.ErrNoResponders), retryable: true},
		{err: nats.ErrDisconnected, retryable: true},
		{err: context.DeadlineExceeded, retryable: false},
		{err: errors.New("bad subject"), retryable: false},
	}
	for _, tc := range tests {
		if got := classifyAsk(tc.err).Retryable; got != tc.retryable {
			t.Fatalf("%v: retryable = %v, want %v", tc.err, got, tc.retryable)
		}
	}

	if !domain.IsKind(asTemporary(nats.ErrNoServers), domain.ErrTemporary) {
		t.Fatal("expected no-servers to be temporary")
	}
	if err := errors.New("bad subject"); asTemporary(err) != err {
		t.Fatal("expected non-transient error to pass through")
	}
}
