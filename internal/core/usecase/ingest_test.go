package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

type fetcherFake struct {
	bodies map[string]string
}

func (f fetcherFake) Fetch(_ context.Context, location string) (io.ReadCloser, error) {
	body, ok := f.bodies[location]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type cacheFake struct {
	mu    sync.Mutex
	saved map[string]string
}

func (f *cacheFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *cacheFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader([]byte(f.saved[key]))), nil
}

type extractorFake struct{}

func (extractorFake) Extract(_ context.Context, sourceType string, raw []byte) (string, error) {
	if sourceType == "pdf" && !bytes.HasPrefix(raw, []byte("%PDF")) {
		return "", errors.New("not a pdf")
	}
	return strings.TrimPrefix(string(raw), "%PDF"), nil
}

type wordChunker struct{ size int }

func (c wordChunker) Split(text string) []string {
	words := strings.Fields(text)
	var out []string
	for start := 0; start < len(words); start += c.size {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

type corpusWriterFake struct {
	chunks []domain.Chunk
	err    error
}

func (f *corpusWriterFake) WriteChunks(chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func TestCorpusIngestBuildsSeedAndFAQChunks(t *testing.T) {
	cache := &cacheFake{}
	vectors := &vectorStoreFake{}
	corpus := &corpusWriterFake{}
	uc := NewCorpusIngestUseCase(
		fetcherFake{bodies: map[string]string{
			"https://aok.de/epa":      "Die   ePA\n speichert\tBefunde und Arztbriefe",
			"data/docs/beitraege.pdf": "%PDF Beitragssatz 14,6 Prozent plus Zusatzbeitrag",
		}},
		cache,
		extractorFake{},
		wordChunker{size: 3},
		embedderFake{vector: []float32{0.1, 0.2}},
		vectors,
		corpus,
		IngestConfig{Workers: 2, EmbedBatchSize: 2},
		discardLogger(),
	)

	sources := []domain.SourceItem{
		{ID: "epa", URL: "https://aok.de/epa", Title: "ePA", Type: "html"},
		{ID: "missing", URL: "https://aok.de/missing", Type: "html"},
		{ID: "beitraege", URL: "data/docs/beitraege.pdf", Title: "Beiträge", Type: "pdf"},
	}
	faqs := []domain.FAQItem{
		{ID: "faq-1", Answer: "  Die ePA ist   freiwillig. ", Topic: "epa", Sources: []string{"https://aok.de/epa"}},
		{ID: "faq-empty", Answer: "   "},
	}

	report, err := uc.Ingest(context.Background(), sources, faqs)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.SeedChunks != 4 || report.FAQChunks != 1 || report.Total() != 5 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !reflect.DeepEqual(report.SkippedItems, []string{"missing"}) {
		t.Fatalf("expected missing item skipped, got %v", report.SkippedItems)
	}

	if len(corpus.chunks) != 5 || len(vectors.added) != 5 || len(vectors.vectors) != 5 {
		t.Fatalf("expected 5 chunks written and indexed, got corpus=%d vectors=%d", len(corpus.chunks), len(vectors.added))
	}
	if corpus.chunks[0].Text != "Die ePA speichert" || corpus.chunks[0].Title() != "ePA" {
		t.Fatalf("expected manifest order and cleaned text, got %+v", corpus.chunks[0])
	}

	faq := corpus.chunks[4]
	if faq.Text != "Die ePA ist freiwillig." {
		t.Fatalf("unexpected faq text %q", faq.Text)
	}
	if faq.Meta(domain.MetaType) != domain.ChunkTypeFAQ || faq.Meta(domain.MetaRegion) != "DE" {
		t.Fatalf("unexpected faq metadata %v", faq.Metadata)
	}
	if faq.Meta(domain.MetaSources) != `["https://aok.de/epa"]` {
		t.Fatalf("expected json encoded sources, got %q", faq.Meta(domain.MetaSources))
	}

	if _, ok := cache.saved["epa.html"]; !ok {
		t.Fatalf("expected raw source cached, got keys %v", cache.saved)
	}
}

func TestCorpusIngestFailsWithoutChunks(t *testing.T) {
	uc := NewCorpusIngestUseCase(
		fetcherFake{}, nil, extractorFake{}, wordChunker{size: 3},
		embedderFake{vector: []float32{1}}, &vectorStoreFake{}, &corpusWriterFake{},
		IngestConfig{}, discardLogger(),
	)

	_, err := uc.Ingest(context.Background(), []domain.SourceItem{{ID: "x", URL: "https://aok.de/x"}}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCorpusIngestPropagatesVectorStoreError(t *testing.T) {
	uc := NewCorpusIngestUseCase(
		fetcherFake{}, nil, extractorFake{}, wordChunker{size: 3},
		embedderFake{vector: []float32{1}}, &vectorStoreFake{addErr: errors.New("collection missing")}, &corpusWriterFake{},
		IngestConfig{}, discardLogger(),
	)

	_, err := uc.Ingest(context.Background(), nil, []domain.FAQItem{{ID: "f", Answer: "Antwort"}})
	if err == nil || !strings.Contains(err.Error(), "collection missing") {
		t.Fatalf("expected vector store error, got %v", err)
	}
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	if got := cleanText("  a\n\n b\t c  "); got != "a b c" {
		t.Fatalf("unexpected cleaned text %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../Mein Antrag?.pdf"); got != "Mein_Antrag_.pdf" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
