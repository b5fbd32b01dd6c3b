package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const defaultStreamChunkChars = 120

var errStreamingUnsupported = errors.New("response writer cannot flush")

// sseWriter emits server-sent events in the OpenAI streaming format.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) event(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.event(string(payload))
}

func (s *sseWriter) done() error {
	return s.event("[DONE]")
}

// streamAnswer replays a finished answer as chunk events followed by a
// finish chunk and the [DONE] sentinel.
func streamAnswer(w http.ResponseWriter, head chatCompletionChunk, text string, maxChars int) error {
	sse, err := newSSEWriter(w)
	if err != nil {
		return err
	}

	chunk := func(choice chatCompletionChunkChoice) chatCompletionChunk {
		c := head
		c.Object = "chat.completion.chunk"
		c.Choices = []chatCompletionChunkChoice{choice}
		return c
	}

	for i, part := range splitForStream(text, maxChars) {
		delta := messageDelta{Content: part}
		if i == 0 {
			delta.Role = "assistant"
		}
		if err := sse.send(chunk(chatCompletionChunkChoice{Delta: delta})); err != nil {
			return err
		}
	}
	stop := "stop"
	if err := sse.send(chunk(chatCompletionChunkChoice{FinishReason: &stop})); err != nil {
		return err
	}
	return sse.done()
}

// splitForStream cuts text into pieces of at most maxChars runes, preferring
// word boundaries. Joining the pieces yields text unchanged.
func splitForStream(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultStreamChunkChars
	}
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}

	var (
		parts   []string
		current strings.Builder
		n       int
	)
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
			n = 0
		}
	}
	for _, word := range strings.SplitAfter(text, " ") {
		wn := utf8.RuneCountInString(word)
		if n+wn > maxChars {
			flush()
		}
		for wn > maxChars {
			runes := []rune(word)
			parts = append(parts, string(runes[:maxChars]))
			word = string(runes[maxChars:])
			wn -= maxChars
		}
		current.WriteString(word)
		n += wn
	}
	flush()
	return parts
}
