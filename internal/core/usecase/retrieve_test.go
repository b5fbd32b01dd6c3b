package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func TestFusionRetrieverRejectsEmptyQueryWithoutBackendCalls(t *testing.T) {
	lexical := &searcherFake{}
	dense := &searcherFake{}
	retriever := NewFusionRetriever(lexical, dense, DefaultFusionWeights())

	_, err := retriever.Retrieve(context.Background(), "   ", 10)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if lexical.calls.Load() != 0 || dense.calls.Load() != 0 {
		t.Fatalf("expected no backend calls, got lexical=%d dense=%d", lexical.calls.Load(), dense.calls.Load())
	}
}

func TestFusionRetrieverBackendFailureIsRetrievalUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		lexical error
		dense   error
	}{
		{name: "lexical down", lexical: errors.New("index closed")},
		{name: "dense down", dense: errors.New("connection refused")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := testChunk("a", "alpha", "", "")
			retriever := NewFusionRetriever(
				&searcherFake{results: scored(a), err: tc.lexical},
				&searcherFake{results: scored(a), err: tc.dense},
				DefaultFusionWeights(),
			)
			_, err := retriever.Retrieve(context.Background(), "Was ist die ePA?", 10)
			if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
				t.Fatalf("expected retrieval unavailable, got %v", err)
			}
		})
	}
}

func TestFusionRetrieverCapsPoolAndPassesLimit(t *testing.T) {
	lexChunks := make([]domain.Chunk, 0, 12)
	denseChunks := make([]domain.Chunk, 0, 12)
	for i := 0; i < 12; i++ {
		lexChunks = append(lexChunks, testChunk(fmt.Sprintf("l%d", i), fmt.Sprintf("lex %d", i), "", ""))
		denseChunks = append(denseChunks, testChunk(fmt.Sprintf("d%d", i), fmt.Sprintf("dense %d", i), "", ""))
	}
	lexical := &searcherFake{results: scored(lexChunks...)}
	dense := &searcherFake{results: scored(denseChunks...)}

	hits, err := NewFusionRetriever(lexical, dense, DefaultFusionWeights()).
		Retrieve(context.Background(), "Zuzahlung Arzneimittel", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(hits) != 10 {
		t.Fatalf("expected default pool of 10, got %d", len(hits))
	}
	if lexical.lastLimit.Load() != 10 || dense.lastLimit.Load() != 10 {
		t.Fatalf("expected both backends asked for 10, got %d/%d", lexical.lastLimit.Load(), dense.lastLimit.Load())
	}
}

func TestFusionRetrieverConsensusRanksFirst(t *testing.T) {
	shared := testChunk("shared", "ePA Widerspruch", "", "")
	lexOnly := testChunk("lex", "Widerspruch Frist", "", "")
	denseOnly := testChunk("dense", "elektronische Akte", "", "")

	hits, err := NewFusionRetriever(
		&searcherFake{results: scored(lexOnly, shared)},
		&searcherFake{results: scored(denseOnly, shared)},
		DefaultFusionWeights(),
	).Retrieve(context.Background(), "ePA Widerspruch", 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if hits[0].Chunk.ID() != "shared" {
		t.Fatalf("expected chunk found by both backends first, got %v", hitIDs(hits))
	}
}

type embedderFake struct {
	vector []float32
	err    error
}

func (f embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type vectorStoreFake struct {
	results []domain.ScoredChunk
	added   []domain.Chunk
	vectors [][]float32
	addErr  error
}

func (f *vectorStoreFake) Add(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunks...)
	f.vectors = append(f.vectors, vectors...)
	return nil
}

func (f *vectorStoreFake) Search(context.Context, []float32, int) ([]domain.ScoredChunk, error) {
	return f.results, nil
}

func TestDenseSearcherPropagatesEmbedError(t *testing.T) {
	searcher := NewDenseSearcher(embedderFake{err: errors.New("model not loaded")}, &vectorStoreFake{})
	if _, err := searcher.Search(context.Background(), "ePA", 5); err == nil {
		t.Fatalf("expected embed error")
	}
}
