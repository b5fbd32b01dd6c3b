package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Metadata keys written by ingestion and read by citation rendering.
const (
	MetaID       = "id"
	MetaTitle    = "title"
	MetaURL      = "url"
	MetaType     = "type"
	MetaTopic    = "topic"
	MetaSources  = "sources"
	MetaCategory = "category"
	MetaLanguage = "language"
	MetaRouting  = "routing_hint"
	MetaRegion   = "region"
)

// ChunkTypeFAQ marks chunks built from curated FAQ answers.
const ChunkTypeFAQ = "faq"

// Chunk is the immutable unit of retrieval.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

func NewChunk(text string, metadata map[string]string) (Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return Chunk{}, WrapError(ErrInvalidInput, "new chunk", fmt.Errorf("empty chunk text"))
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return Chunk{Text: text, Metadata: meta}, nil
}

func (c Chunk) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

func (c Chunk) Title() string { return c.Meta(MetaTitle) }
func (c Chunk) URL() string   { return c.Meta(MetaURL) }
func (c Chunk) ID() string    { return c.Meta(MetaID) }

// Key identifies a chunk by content and metadata. Two chunks carrying the
// same text and the same metadata are the same retrieval candidate.
func (c Chunk) Key() string {
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Every field is length-prefixed so no text can imitate a metadata pair.
	h := sha256.New()
	field := func(v string) {
		_, _ = h.Write(binary.AppendUvarint(nil, uint64(len(v))))
		_, _ = h.Write([]byte(v))
	}
	field(c.Text)
	for _, k := range keys {
		field(k)
		field(c.Metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
