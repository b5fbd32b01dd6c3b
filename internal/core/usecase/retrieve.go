package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

const defaultPoolSize = 10

type FusionRetriever struct {
	lexical ports.Searcher
	dense   ports.Searcher
	weights FusionWeights
}

func NewFusionRetriever(lexical, dense ports.Searcher, weights FusionWeights) *FusionRetriever {
	if weights.Lexical < 0 {
		weights.Lexical = 0
	}
	if weights.Dense < 0 {
		weights.Dense = 0
	}
	return &FusionRetriever{
		lexical: lexical,
		dense:   dense,
		weights: weights,
	}
}

// Retrieve queries both backends for poolSize candidates each and returns the
// fused, deduplicated pool capped at poolSize. Both backends are required.
func (r *FusionRetriever) Retrieve(ctx context.Context, query string, poolSize int) ([]domain.RetrievalHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("empty query"))
	}
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	var lexical, dense []domain.ScoredChunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.lexical.Search(gctx, query, poolSize)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		lexical = res
		return nil
	})
	g.Go(func() error {
		res, err := r.dense.Search(gctx, query, poolSize)
		if err != nil {
			return fmt.Errorf("dense search: %w", err)
		}
		dense = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", err)
	}

	return trimCandidates(fuseCandidatesRRF(lexical, dense, r.weights), poolSize), nil
}

// DenseSearcher embeds the query text and searches a vector store.
type DenseSearcher struct {
	embedder ports.Embedder
	store    ports.VectorStore
}

func NewDenseSearcher(embedder ports.Embedder, store ports.VectorStore) *DenseSearcher {
	return &DenseSearcher{embedder: embedder, store: store}
}

func (s *DenseSearcher) Search(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := s.store.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search vector store: %w", err)
	}
	return chunks, nil
}
