package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func TestWriteThenLoadKeepsOrderAndMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "chunks.jsonl")
	file := NewFile(path)

	in := []domain.Chunk{
		{Text: "Die ePA ist freiwillig.", Metadata: map[string]string{domain.MetaID: "epa", domain.MetaURL: "https://www.aok.de/epa?x=1&y=2"}},
		{Text: "Beitragssatz 14,6 Prozent.", Metadata: map[string]string{domain.MetaID: "beitrag"}},
	}
	require.NoError(t, file.WriteChunks(in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "x=1&y=2")

	out, err := file.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadMissingFileIsConfigurationError(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "absent.jsonl")).Load()
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrConfiguration))
}

func TestLoadSkipsBlankLinesAndRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.jsonl")
	require.NoError(t, os.WriteFile(good, []byte("\n{\"text\":\"a\"}\n\n{\"text\":\"  \"}\n"), 0o644))

	chunks, err := NewFile(good).Load()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotNil(t, chunks[0].Metadata)

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{not json}\n"), 0o644))
	_, err = NewFile(bad).Load()
	assert.True(t, domain.IsKind(err, domain.ErrConfiguration))
}
