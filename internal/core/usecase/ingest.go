package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

type IngestConfig struct {
	Workers        int
	EmbedBatchSize int
	DefaultRegion  string
}

// CorpusIngestUseCase builds the retrieval corpus from curated manifests.
// It must not run against storage that is being served concurrently.
type CorpusIngestUseCase struct {
	fetcher   ports.SourceFetcher
	cache     ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectors   ports.VectorStore
	corpus    ports.CorpusWriter
	cfg       IngestConfig
	logger    *slog.Logger
}

func NewCorpusIngestUseCase(
	fetcher ports.SourceFetcher,
	cache ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	corpus ports.CorpusWriter,
	cfg IngestConfig,
	logger *slog.Logger,
) *CorpusIngestUseCase {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 16
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "DE"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusIngestUseCase{
		fetcher:   fetcher,
		cache:     cache,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		corpus:    corpus,
		cfg:       cfg,
		logger:    logger,
	}
}

func (uc *CorpusIngestUseCase) Ingest(
	ctx context.Context,
	sources []domain.SourceItem,
	faqs []domain.FAQItem,
) (domain.IngestReport, error) {
	report := domain.IngestReport{}

	seedChunks, skipped, err := uc.ingestSources(ctx, sources)
	if err != nil {
		return report, err
	}
	report.SeedChunks = len(seedChunks)
	report.SkippedItems = skipped

	faqChunks := buildFAQChunks(faqs, uc.cfg.DefaultRegion)
	report.FAQChunks = len(faqChunks)

	all := make([]domain.Chunk, 0, len(seedChunks)+len(faqChunks))
	all = append(all, seedChunks...)
	all = append(all, faqChunks...)
	if len(all) == 0 {
		return report, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no chunks produced"))
	}

	if err := uc.indexVectors(ctx, all); err != nil {
		return report, err
	}
	if err := uc.corpus.WriteChunks(all); err != nil {
		return report, fmt.Errorf("write corpus: %w", err)
	}

	uc.logger.Info("ingest_done",
		"seed_chunks", report.SeedChunks,
		"faq_chunks", report.FAQChunks,
		"skipped", len(report.SkippedItems),
	)
	return report, nil
}

// ingestSources processes manifest items on a worker pool. Output keeps
// manifest order; failing items are skipped.
func (uc *CorpusIngestUseCase) ingestSources(ctx context.Context, sources []domain.SourceItem) ([]domain.Chunk, []string, error) {
	if len(sources) == 0 {
		return nil, nil, nil
	}

	pool, err := ants.NewPool(uc.cfg.Workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create ingest pool: %w", err)
	}
	defer pool.Release()

	perItem := make([][]domain.Chunk, len(sources))
	var (
		mu      sync.Mutex
		skipped []string
		wg      sync.WaitGroup
	)
	skip := func(item domain.SourceItem, cause error) {
		uc.logger.Warn("ingest_skip_item", "id", item.ID, "url", item.URL, "error", cause)
		mu.Lock()
		skipped = append(skipped, item.ID)
		mu.Unlock()
	}

	for idx, item := range sources {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			chunks, err := uc.ingestSource(ctx, item)
			if err != nil {
				skip(item, err)
				return
			}
			perItem[idx] = chunks
		})
		if submitErr != nil {
			wg.Done()
			skip(item, submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]domain.Chunk, 0, len(sources))
	for _, chunks := range perItem {
		out = append(out, chunks...)
	}
	return out, skipped, nil
}

func (uc *CorpusIngestUseCase) ingestSource(ctx context.Context, item domain.SourceItem) ([]domain.Chunk, error) {
	if strings.TrimSpace(item.URL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest source", errors.New("url is required"))
	}

	raw, err := uc.fetch(ctx, item)
	if err != nil {
		return nil, err
	}

	text, err := uc.extractor.Extract(ctx, sourceType(item), raw)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", item.ID, err)
	}
	text = cleanText(text)
	if text == "" {
		return nil, fmt.Errorf("extract %s: no text", item.ID)
	}

	meta := item.Metadata()
	windows := uc.chunker.Split(text)
	out := make([]domain.Chunk, 0, len(windows))
	for _, window := range windows {
		chunk, err := domain.NewChunk(window, meta)
		if err != nil {
			continue
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (uc *CorpusIngestUseCase) fetch(ctx context.Context, item domain.SourceItem) ([]byte, error) {
	body, err := uc.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", item.URL, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", item.URL, err)
	}

	if uc.cache != nil {
		key := cacheKey(item)
		if err := uc.cache.Save(ctx, key, bytes.NewReader(raw)); err != nil {
			uc.logger.Warn("ingest_cache_failed", "key", key, "error", err)
		}
	}
	return raw, nil
}

func (uc *CorpusIngestUseCase) indexVectors(ctx context.Context, chunks []domain.Chunk) error {
	batch := uc.cfg.EmbedBatchSize
	for start := 0; start < len(chunks); start += batch {
		end := start + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		part := chunks[start:end]

		texts := make([]string, len(part))
		for i, c := range part {
			texts[i] = c.Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(part) {
			return fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vectors))
		}
		if err := uc.vectors.Add(ctx, part, vectors); err != nil {
			return fmt.Errorf("add batch %d-%d: %w", start, end, err)
		}
		uc.logger.Debug("ingest_batch_indexed", "from", start, "to", end)
	}
	return nil
}

// buildFAQChunks turns every non-empty cleaned answer into one chunk.
func buildFAQChunks(faqs []domain.FAQItem, defaultRegion string) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(faqs))
	for _, faq := range faqs {
		text := cleanText(faq.Answer)
		if text == "" {
			continue
		}

		sources := faq.Sources
		if sources == nil {
			sources = []string{}
		}
		encoded, _ := json.Marshal(sources)
		region := faq.Region
		if region == "" {
			region = defaultRegion
		}

		meta := map[string]string{
			domain.MetaID:      faq.ID,
			domain.MetaType:    domain.ChunkTypeFAQ,
			domain.MetaSources: string(encoded),
			domain.MetaRegion:  region,
		}
		if faq.Topic != "" {
			meta[domain.MetaTopic] = faq.Topic
		}
		if faq.RoutingHint != "" {
			meta[domain.MetaRouting] = faq.RoutingHint
		}

		chunk, err := domain.NewChunk(text, meta)
		if err != nil {
			continue
		}
		out = append(out, chunk)
	}
	return out
}

// cleanText collapses all whitespace runs to single spaces.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func sourceType(item domain.SourceItem) string {
	t := strings.ToLower(strings.TrimSpace(item.Type))
	if t == "" {
		return "html"
	}
	return t
}

func cacheKey(item domain.SourceItem) string {
	name := item.ID
	if name == "" {
		name = filepath.Base(item.URL)
	}
	return sanitizeFilename(name) + "." + sourceType(item)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "source"
	}
	return base
}
