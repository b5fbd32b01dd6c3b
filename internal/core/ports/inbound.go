package ports

import (
	"context"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for one guarded RAG invocation.
type QuestionAnswerer interface {
	Invoke(ctx context.Context, question string) (*domain.Response, error)
}

// CorpusIngestor is the inbound contract for offline corpus building.
type CorpusIngestor interface {
	Ingest(ctx context.Context, sources []domain.SourceItem, faqs []domain.FAQItem) (domain.IngestReport, error)
}
