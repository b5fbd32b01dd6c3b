package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func testChunk(id, text, url, title string) domain.Chunk {
	meta := map[string]string{domain.MetaID: id}
	if url != "" {
		meta[domain.MetaURL] = url
	}
	if title != "" {
		meta[domain.MetaTitle] = title
	}
	return domain.Chunk{Text: text, Metadata: meta}
}

func scored(chunks ...domain.Chunk) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, domain.ScoredChunk{Chunk: c, Score: float64(len(chunks) - i)})
	}
	return out
}

func hitIDs(hits []domain.RetrievalHit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Chunk.ID())
	}
	return out
}

type searcherFake struct {
	results   []domain.ScoredChunk
	err       error
	calls     atomic.Int32
	lastLimit atomic.Int32
}

func (f *searcherFake) Search(_ context.Context, _ string, limit int) ([]domain.ScoredChunk, error) {
	f.calls.Add(1)
	f.lastLimit.Store(int32(limit))
	if f.err != nil {
		return nil, f.err
	}
	out := f.results
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type scorerFake struct {
	scores []float64
	byText map[string]float64
	err    error
	calls  int
}

func (f *scorerFake) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.byText != nil {
		out := make([]float64, len(passages))
		for i, p := range passages {
			out[i] = f.byText[p]
		}
		return out, nil
	}
	if f.scores == nil {
		return make([]float64, len(passages)), nil
	}
	return f.scores, nil
}

type generatorFake struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *generatorFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
