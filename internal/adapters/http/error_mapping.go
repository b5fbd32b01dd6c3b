package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGenerationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage hides upstream details for server-side failures.
func publicErrorMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusGatewayTimeout:
		return "request timed out"
	case http.StatusServiceUnavailable:
		return "retrieval backend unavailable"
	case http.StatusBadGateway:
		return "answer generation failed"
	default:
		return "internal error"
	}
}
