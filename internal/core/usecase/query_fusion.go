package usecase

import (
	"sort"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const defaultRRFK = 60

// FusionWeights are the per-list weights of weighted reciprocal rank fusion.
type FusionWeights struct {
	Lexical float64
	Dense   float64
	RRFK    int
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Lexical: 0.45, Dense: 0.55, RRFK: defaultRRFK}
}

type fusedCandidate struct {
	hit   domain.RetrievalHit
	order int
}

// fuseCandidatesRRF merges ranked lists. A chunk at 1-based rank r of a list
// contributes weight/(r+k); contributions of both lists are summed.
// Order: fused score desc, best single-list rank asc, first insertion.
func fuseCandidatesRRF(lexical, dense []domain.ScoredChunk, weights FusionWeights) []domain.RetrievalHit {
	rrfK := weights.RRFK
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*fusedCandidate, len(lexical)+len(dense))
	order := 0
	addList := func(chunks []domain.ScoredChunk, source domain.RetrievalSource) {
		for idx, scored := range chunks {
			rank := idx + 1
			key := scored.Chunk.Key()
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{
					hit: domain.RetrievalHit{
						Chunk: scored.Chunk,
						Ranks: make(map[domain.RetrievalSource]int, 2),
					},
					order: order,
				}
				order++
				acc[key] = candidate
			}
			if prev, seen := candidate.hit.Ranks[source]; seen && prev <= rank {
				// duplicate within one list keeps its better rank only
				continue
			}
			candidate.hit.Ranks[source] = rank
		}
	}

	addList(lexical, domain.SourceLexical)
	addList(dense, domain.SourceDense)

	out := make([]fusedCandidate, 0, len(acc))
	for _, c := range acc {
		c.hit.Score = fusedScore(c.hit.Ranks, weights, rrfK)
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].hit.Score != out[j].hit.Score {
			return out[i].hit.Score > out[j].hit.Score
		}
		bi, bj := out[i].hit.BestRank(), out[j].hit.BestRank()
		if bi != bj {
			return bi < bj
		}
		return out[i].order < out[j].order
	})

	hits := make([]domain.RetrievalHit, 0, len(out))
	for _, c := range out {
		hits = append(hits, c.hit)
	}
	return hits
}

func fusedScore(ranks map[domain.RetrievalSource]int, weights FusionWeights, rrfK int) float64 {
	score := 0.0
	if r, ok := ranks[domain.SourceLexical]; ok {
		score += weights.Lexical / float64(r+rrfK)
	}
	if r, ok := ranks[domain.SourceDense]; ok {
		score += weights.Dense / float64(r+rrfK)
	}
	return score
}

func trimCandidates(hits []domain.RetrievalHit, limit int) []domain.RetrievalHit {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}
