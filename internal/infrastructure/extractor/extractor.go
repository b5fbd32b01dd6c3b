// Package extractor dispatches raw source bytes to a format extractor by
// source type.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/extractor/html"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/extractor/plaintext"
)

const (
	TypeHTML  = "html"
	TypePDF   = "pdf"
	TypePlain = "text"
)

type formatExtractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

type Registry struct {
	byType map[string]formatExtractor
}

func NewRegistry() *Registry {
	plain := plaintext.NewExtractor()
	return &Registry{byType: map[string]formatExtractor{
		TypeHTML:  html.NewExtractor(),
		TypePDF:   pdf.NewExtractor(),
		TypePlain: plain,
		"txt":     plain,
		"md":      plain,
	}}
}

func (r *Registry) Extract(ctx context.Context, sourceType string, raw []byte) (string, error) {
	ext, ok := r.byType[strings.ToLower(strings.TrimSpace(sourceType))]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("unsupported source type %q", sourceType))
	}
	return ext.Extract(ctx, raw)
}
