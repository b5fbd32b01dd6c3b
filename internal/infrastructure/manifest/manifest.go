// Package manifest reads the curated YAML ingestion manifests. Both files
// are top-level YAML sequences.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func LoadSources(path string) ([]domain.SourceItem, error) {
	items, err := load[domain.SourceItem](path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, invalid(path, fmt.Errorf("item %d: id is required", i))
		}
		if _, dup := seen[item.ID]; dup {
			return nil, invalid(path, fmt.Errorf("duplicate id %q", item.ID))
		}
		seen[item.ID] = struct{}{}
	}
	return items, nil
}

func LoadFAQ(path string) ([]domain.FAQItem, error) {
	items, err := load[domain.FAQItem](path)
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if item.ID == "" {
			return nil, invalid(path, fmt.Errorf("item %d: id is required", i))
		}
	}
	return items, nil
}

func load[T any](path string) ([]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var items []T
	if err := dec.Decode(&items); err != nil {
		if errors.Is(err, io.EOF) {
			return []T{}, nil
		}
		return nil, invalid(path, err)
	}
	return items, nil
}

func invalid(path string, err error) error {
	return domain.WrapError(domain.ErrConfiguration, "load manifest "+path, err)
}
