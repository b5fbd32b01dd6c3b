package usecase

import (
	"strings"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const (
	citationFallbackTitle = "Quelle"
	citationsHeader       = "Quellen:"
)

// buildCitations keeps the first hit per url in hit order; hits without a url
// are not citable.
func buildCitations(hits []domain.RetrievalHit) []domain.Citation {
	seen := make(map[string]struct{}, len(hits))
	out := make([]domain.Citation, 0, len(hits))
	for _, hit := range hits {
		url := strings.TrimSpace(hit.Chunk.URL())
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}

		title := strings.TrimSpace(hit.Chunk.Title())
		if title == "" {
			title = strings.TrimSpace(hit.Chunk.ID())
		}
		if title == "" {
			title = citationFallbackTitle
		}
		out = append(out, domain.Citation{Title: title, URL: url})
	}
	return out
}

func renderCitations(citations []domain.Citation) []string {
	out := make([]string, 0, len(citations))
	for _, c := range citations {
		out = append(out, c.Render())
	}
	return out
}

func composeAnswer(cleaned string, rendered []string) string {
	if len(rendered) == 0 {
		return cleaned
	}
	return cleaned + "\n\n" + citationsHeader + "\n" + strings.Join(rendered, "\n")
}
