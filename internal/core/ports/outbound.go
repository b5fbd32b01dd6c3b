package ports

import (
	"context"
	"io"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

// Searcher returns a ranked candidate list for a query text.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error)
}

// LexicalIndex is a term-based index over the corpus.
type LexicalIndex interface {
	Searcher
	Index(ctx context.Context, chunks []domain.Chunk) error
}

// VectorStore indexes embedded chunks and performs nearest-neighbour search.
type VectorStore interface {
	Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator turns a grounded prompt into completion text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RelevanceScorer scores (query, passage) pairs; higher is more relevant.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// InteractionStore persists completed invocations.
type InteractionStore interface {
	Record(ctx context.Context, interaction domain.Interaction) error
}

// ObjectStorage caches raw source documents fetched during ingestion.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SourceFetcher downloads or opens a manifest source.
type SourceFetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from raw source bytes of a given type.
type TextExtractor interface {
	Extract(ctx context.Context, sourceType string, raw []byte) (string, error)
}

// Chunker splits text into retrievable windows.
type Chunker interface {
	Split(text string) []string
}

// CorpusWriter persists the lexical bootstrap file.
type CorpusWriter interface {
	WriteChunks(chunks []domain.Chunk) error
}
