// Package chunking cuts extracted source text into overlapping windows.
package chunking

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Splitter produces windows of at most ChunkSize runes; consecutive windows
// share about Overlap runes. Window ends are moved back to the last sentence
// or word boundary inside the final fifth of the window when one exists.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = softBoundary(runes, start, end, s.ChunkSize/5)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// softBoundary returns the position after the last sentence end, or else
// the last whitespace, in runes[end-slack:end]. It returns end when neither
// is found.
func softBoundary(runes []rune, start, end, slack int) int {
	floor := end - slack
	if floor <= start {
		floor = start + 1
	}
	space := -1
	for i := end - 1; i >= floor; i-- {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
		if space < 0 && unicode.IsSpace(r) {
			space = i
		}
	}
	if space > 0 {
		return space
	}
	return end
}
