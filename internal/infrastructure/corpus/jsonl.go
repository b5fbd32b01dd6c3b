// Package corpus reads and writes the chunk interchange file: one JSON
// object {"text", "metadata"} per line.
package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const maxLineBytes = 4 << 20

type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// WriteChunks replaces the file with chunks. The file is written to a
// temporary sibling and renamed into place.
func (f *File) WriteChunks(chunks []domain.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".chunks-*.jsonl")
	if err != nil {
		return fmt.Errorf("create corpus temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, chunk := range chunks {
		if err := enc.Encode(chunk); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("encode chunk: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close corpus: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename corpus: %w", err)
	}
	return nil
}

// Load reads every chunk. A missing file is a configuration error; blank
// lines are skipped.
func (f *File) Load() ([]domain.Chunk, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.WrapError(domain.ErrConfiguration, "load corpus", fmt.Errorf("corpus file %q not found", f.path))
	}
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		chunks []domain.Chunk
		line   int
	)
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var chunk domain.Chunk
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "load corpus", fmt.Errorf("line %d: %w", line, err))
		}
		if strings.TrimSpace(chunk.Text) == "" {
			continue
		}
		if chunk.Metadata == nil {
			chunk.Metadata = map[string]string{}
		}
		chunks = append(chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return chunks, nil
}
