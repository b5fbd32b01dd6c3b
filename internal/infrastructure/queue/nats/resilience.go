package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

// transientErrors are connection level failures worth another attempt.
var transientErrors = []error{
	nats.ErrNoServers,
	nats.ErrNoResponders,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

func isTransient(err error) bool {
	for _, target := range transientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyAsk retries transient connection failures. A request timeout is
// neither retried nor counted: the worker may still be answering it.
func classifyAsk(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case isTransient(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// asTemporary marks transient failures so callers map them to 503.
func asTemporary(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) || !isTransient(err) {
		return err
	}
	return domain.WrapError(domain.ErrTemporary, "nats ask", err)
}
