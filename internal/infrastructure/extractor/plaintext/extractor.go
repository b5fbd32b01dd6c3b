package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("plain text source is not valid UTF-8")
	}
	return strings.TrimSpace(string(raw)), nil
}
