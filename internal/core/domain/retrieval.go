package domain

// RetrievalSource names the ranked list a candidate came from.
type RetrievalSource string

const (
	SourceLexical RetrievalSource = "lexical"
	SourceDense   RetrievalSource = "dense"
)

// ScoredChunk is one entry of a backend's ranked result list.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalHit is a fused or reranked candidate.
type RetrievalHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
	// Ranks holds the 1-based rank per source list the chunk appeared in.
	Ranks map[RetrievalSource]int `json:"ranks"`
}

func (h RetrievalHit) Sources() []RetrievalSource {
	out := make([]RetrievalSource, 0, 2)
	for _, src := range []RetrievalSource{SourceLexical, SourceDense} {
		if _, ok := h.Ranks[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// BestRank is the lowest rank across source lists, 0 when the hit has none.
func (h RetrievalHit) BestRank() int {
	best := 0
	for _, r := range h.Ranks {
		if best == 0 || r < best {
			best = r
		}
	}
	return best
}
