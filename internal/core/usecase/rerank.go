package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

type Reranker struct {
	scorer ports.RelevanceScorer
}

func NewReranker(scorer ports.RelevanceScorer) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank rescoring is skipped when disabled or when no scorer is configured:
// the first topK candidates are returned in fusion order.
func (r *Reranker) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.RetrievalHit,
	topK int,
	enabled bool,
) ([]domain.RetrievalHit, error) {
	if len(candidates) == 0 {
		return []domain.RetrievalHit{}, nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	if !enabled || r.scorer == nil {
		out := make([]domain.RetrievalHit, topK)
		copy(out, candidates[:topK])
		return out, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.Text
	}
	scores, err := r.scorer.Score(ctx, query, passages)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "rerank", err)
	}
	if len(scores) != len(candidates) {
		return nil, domain.WrapError(
			domain.ErrRetrievalUnavailable,
			"rerank",
			fmt.Errorf("scores/candidates mismatch: %d/%d", len(scores), len(candidates)),
		)
	}

	head := make([]domain.RetrievalHit, len(candidates))
	copy(head, candidates)
	for i := range head {
		score := scores[i]
		if math.IsNaN(score) {
			score = math.Inf(-1)
		}
		head[i].Score = score
	}

	// stable: equal scores keep their incoming fusion rank
	sort.SliceStable(head, func(i, j int) bool {
		return head[i].Score > head[j].Score
	})

	return head[:topK], nil
}
