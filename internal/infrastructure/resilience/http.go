package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

// HTTPStatusError is a non-2xx answer from an upstream HTTP dependency.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// NewHTTPStatusError reads up to 2KiB of the response body into the error.
func NewHTTPStatusError(service, operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Service:    service,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

var (
	retryCounted = ErrorClassification{Retryable: true, RecordFailure: true}
	failCounted  = ErrorClassification{RecordFailure: true}
	ignored      = ErrorClassification{}
)

// ClassifyHTTPError treats network errors and 408/429/5xx gateway answers as
// retryable. Caller cancellation and other 4xx answers do not count against
// the breaker.
func ClassifyHTTPError(err error) ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ignored
	case errors.As(err, &statusErr):
		if IsRetryableHTTPStatus(statusErr.StatusCode) {
			return retryCounted
		}
		return ignored
	case errors.As(err, &netErr):
		return retryCounted
	default:
		return failCounted
	}
}

// WrapTemporary marks retryable failures and open circuits as ErrTemporary.
func WrapTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if ClassifyHTTPError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
