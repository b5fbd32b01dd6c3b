package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

type ingestorFake struct {
	sources []domain.SourceItem
	faqs    []domain.FAQItem
	report  domain.IngestReport
}

func (f *ingestorFake) Ingest(_ context.Context, sources []domain.SourceItem, faqs []domain.FAQItem) (domain.IngestReport, error) {
	f.sources = sources
	f.faqs = faqs
	return f.report, nil
}

type answererFake struct {
	question string
	resp     *domain.Response
	err      error
}

func (f *answererFake) Invoke(_ context.Context, question string) (*domain.Response, error) {
	f.question = question
	return f.resp, f.err
}

type listerFake struct {
	items []domain.Interaction
	limit int
}

func (f *listerFake) ListRecent(_ context.Context, limit int) ([]domain.Interaction, error) {
	f.limit = limit
	return f.items, nil
}

func execute(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(deps, "test")
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestIngestLoadsBothManifests(t *testing.T) {
	ing := &ingestorFake{report: domain.IngestReport{SeedChunks: 3, FAQChunks: 2, SkippedItems: []string{"broken"}}}
	released := false
	deps := Deps{
		Ingestor: func(context.Context) (ports.CorpusIngestor, func(), error) {
			return ing, func() { released = true }, nil
		},
		LoadSources: func(path string) ([]domain.SourceItem, error) {
			return []domain.SourceItem{{ID: "epa", URL: path}}, nil
		},
		LoadFAQ: func(string) ([]domain.FAQItem, error) {
			return []domain.FAQItem{{ID: "faq-1", Answer: "a"}}, nil
		},
	}

	out, err := execute(t, deps, "ingest", "--manifest", "seed.yaml", "--faq", "faq.yaml")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if len(ing.sources) != 1 || ing.sources[0].URL != "seed.yaml" || len(ing.faqs) != 1 {
		t.Fatalf("unexpected ingest input: %+v %+v", ing.sources, ing.faqs)
	}
	if !released {
		t.Fatal("ingestor was not released")
	}
	for _, want := range []string{"seed chunks: 3", "total:       5", "skipped: broken"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestIngestRequiresManifest(t *testing.T) {
	deps := Deps{
		Ingestor: func(context.Context) (ports.CorpusIngestor, func(), error) {
			t.Fatal("ingestor must not be built without manifests")
			return nil, nil, nil
		},
		LoadSources: func(string) ([]domain.SourceItem, error) { return nil, nil },
		LoadFAQ:     func(string) ([]domain.FAQItem, error) { return nil, nil },
	}
	_, err := execute(t, deps, "ingest")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAskPrintsAnswer(t *testing.T) {
	local := &answererFake{resp: &domain.Response{
		Answer:    "Die ePA ist freiwillig.\n\nQuellen:\n- ePA → https://www.aok.de/pk/epa/",
		Route:     domain.RouteGenerated,
		Citations: []string{"- ePA → https://www.aok.de/pk/epa/"},
	}}
	deps := Deps{
		Answerer: func(context.Context) (ports.QuestionAnswerer, func(), error) {
			return local, func() {}, nil
		},
	}

	out, err := execute(t, deps, "ask", "Was", "ist", "die", "ePA?")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if local.question != "Was ist die ePA?" {
		t.Fatalf("question = %q", local.question)
	}
	if strings.Count(out, "Quellen:") != 1 {
		t.Fatalf("sources printed twice or missing: %q", out)
	}
}

func TestAskViaNATSUsesRemote(t *testing.T) {
	remote := &answererFake{resp: &domain.Response{Answer: "remote", Route: domain.RouteNoEvidence}}
	deps := Deps{
		Answerer: func(context.Context) (ports.QuestionAnswerer, func(), error) {
			t.Fatal("local answerer must not be built with --nats")
			return nil, nil, nil
		},
		Remote: func(context.Context) (ports.QuestionAnswerer, func(), error) {
			return remote, func() {}, nil
		},
	}
	out, err := execute(t, deps, "ask", "--nats", "Hallo")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	if !strings.Contains(out, "remote") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAskPropagatesError(t *testing.T) {
	want := domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("down"))
	deps := Deps{
		Answerer: func(context.Context) (ports.QuestionAnswerer, func(), error) {
			return &answererFake{err: want}, func() {}, nil
		},
	}
	_, err := execute(t, deps, "ask", "Frage")
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestHistoryPrintsTable(t *testing.T) {
	lister := &listerFake{items: []domain.Interaction{{
		Question:   "Was kostet die AOK?",
		Route:      domain.RouteGenerated,
		DocCount:   2,
		DurationMS: 420,
		CreatedAt:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}}}
	deps := Deps{
		Interactions: func(context.Context) (InteractionLister, func(), error) {
			return lister, func() {}, nil
		},
	}
	out, err := execute(t, deps, "history", "-n", "5")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if lister.limit != 5 {
		t.Fatalf("limit = %d", lister.limit)
	}
	if !strings.Contains(out, "2026-10-01T12:00:00Z") || !strings.Contains(out, "generated") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestHistoryNotConfigured(t *testing.T) {
	_, err := execute(t, Deps{}, "history")
	if !errors.Is(err, errNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
