package qdrant

import (
	"errors"

	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

func asStatusError(err error) *resilience.HTTPStatusError {
	var statusErr *resilience.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr
	}
	return nil
}
