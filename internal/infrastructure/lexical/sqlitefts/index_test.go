package sqlitefts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func openIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testChunk(id, title, text string) domain.Chunk {
	return domain.Chunk{Text: text, Metadata: map[string]string{domain.MetaID: id, domain.MetaTitle: title}}
}

func TestSearchRanksByBM25(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []domain.Chunk{
		testChunk("epa", "Elektronische Patientenakte", "Die ePA speichert Befunde. Die ePA ist freiwillig."),
		testChunk("beitrag", "Beitragssatz", "Der allgemeine Beitragssatz beträgt 14,6 Prozent."),
		testChunk("bonus", "Bonusprogramm", "Das Bonusprogramm belohnt Vorsorge."),
	}))

	hits, err := idx.Search(ctx, "Was ist die ePA?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "epa", hits[0].Chunk.ID())
	assert.Equal(t, "Elektronische Patientenakte", hits[0].Chunk.Title())

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearchHandlesPunctuationAndEmptyQuery(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []domain.Chunk{testChunk("a", "", "Krankengeld nach sechs Wochen")}))

	hits, err := idx.Search(ctx, `Krankengeld "AND" (NOT*`, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = idx.Search(ctx, "?!", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexIgnoresDuplicates(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()
	c := testChunk("a", "t", "Zahnersatz Festzuschuss")

	require.NoError(t, idx.Index(ctx, []domain.Chunk{c}))
	require.NoError(t, idx.Index(ctx, []domain.Chunk{c}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchRespectsLimit(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []domain.Chunk{
		testChunk("1", "", "Vorsorge eins"),
		testChunk("2", "", "Vorsorge zwei"),
		testChunk("3", "", "Vorsorge drei"),
	}))

	hits, err := idx.Search(ctx, "Vorsorge", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMatchExpression(t *testing.T) {
	assert.Equal(t, `"was" OR "ist" OR "die" OR "epa"`, matchExpression("Was ist die ePA? Die ePA!"))
	assert.Equal(t, "", matchExpression("  ...  "))
}

func TestSearchFindsChunkByUniqueTerm(t *testing.T) {
	idx := openIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []domain.Chunk{
		testChunk("epa", "ePA", "Die ePA speichert Befunde."),
		testChunk("beitrag", "Beitrag", "Der Beitragssatz beträgt 14,6 Prozent."),
		testChunk("clarimedis", "Clarimedis", "Clarimedis berät rund um die Uhr."),
		testChunk("bonus", "Bonus", "Das Bonusprogramm belohnt Vorsorge."),
	}))

	hits, err := idx.Search(ctx, "Clarimedis", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "clarimedis", hits[0].Chunk.ID())
}
