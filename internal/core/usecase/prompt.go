package usecase

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

const systemPromptDE = `Du bist ein sachlicher Assistent der AOK.
Antworte NUR auf Basis der bereitgestellten Kontexte. Wenn die Kontexte nicht reichen,
sage: "Dafür habe ich in den bereitgestellten Quellen keinen Beleg."
Regeln:
- Keine Diagnosen oder individuelle Therapieempfehlungen.
- Keine URLs erfinden; zitiere nur die bereitgestellten Quellen (die UI fügt sie an).
- Antworte kurz und klar auf Deutsch (3–6 Sätze, ggf. 1–2 Aufzählungspunkte).
- Wenn es um persönliche Anliegen (Mitgliedsdaten, Anträge, Leistungsstände) geht:
  verweise auf "Meine AOK" oder die Servicenummer 0800 026 00 00 (kostenfrei).
- KEINE eigene Quellenliste generieren – die Quellen fügt das System am Ende an.`

const contextSeparator = "\n\n---\n\n"

// PromptLimits bound the context block of a grounded prompt.
type PromptLimits struct {
	MaxContexts      int
	MaxContextChars  int
	DedupPrefixChars int
}

func DefaultPromptLimits() PromptLimits {
	return PromptLimits{MaxContexts: 4, MaxContextChars: 1200, DedupPrefixChars: 200}
}

func (l PromptLimits) normalize() PromptLimits {
	def := DefaultPromptLimits()
	if l.MaxContexts <= 0 {
		l.MaxContexts = def.MaxContexts
	}
	if l.MaxContextChars <= 0 {
		l.MaxContextChars = def.MaxContextChars
	}
	if l.DedupPrefixChars <= 0 {
		l.DedupPrefixChars = def.DedupPrefixChars
	}
	return l
}

// selectContexts trims, drops empties, filters near-duplicates by a hash of
// the first DedupPrefixChars runes and caps count and length. Distinct
// passages sharing the same opening are treated as duplicates.
func selectContexts(contexts []string, limits PromptLimits) []string {
	limits = limits.normalize()
	seen := make(map[uint64]struct{}, len(contexts))
	out := make([]string, 0, limits.MaxContexts)
	for _, raw := range contexts {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		key := prefixHash(text, limits.DedupPrefixChars)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, truncateRunes(text, limits.MaxContextChars))
		if len(out) >= limits.MaxContexts {
			break
		}
	}
	return out
}

func buildGroundedPrompt(question string, contexts []string, limits PromptLimits) string {
	block := strings.Join(selectContexts(contexts, limits), contextSeparator)
	user := fmt.Sprintf(`Verwende ausschließlich die folgenden Kontexte, um die Frage zu beantworten.
Wenn keine eindeutige Antwort möglich ist, sage das explizit.

[KONTEXTE]
%s

[FRAGE]
%s

Formatiere die Antwort kurz und verständlich. Erzeuge KEINE eigene Quellenliste.`, block, question)

	return "[SYSTEM]\n" + systemPromptDE + "\n\n[USER]\n" + user + "\n\n[ASSISTANT]"
}

var modelSourcesMarker = regexp.MustCompile(`(?i)\n\s*quellen\s*:\s*`)

// stripModelSources drops a trailing "Quellen:" section the model may append.
func stripModelSources(text string) string {
	parts := modelSourcesMarker.Split(text, 2)
	return strings.TrimSpace(parts[0])
}

func prefixHash(text string, n int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(truncateRunes(text, n)))
	return h.Sum64()
}

func truncateRunes(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for idx := range text {
		if count == n {
			return text[:idx]
		}
		count++
	}
	return text
}
