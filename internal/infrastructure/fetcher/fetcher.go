// Package fetcher opens ingestion sources from HTTP(S) URLs or local paths.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kirillkom/aok-rag-assistant/internal/infrastructure/resilience"
)

const (
	userAgent    = "aok-rag-assistant-ingest/1.0"
	maxBodyBytes = 32 << 20
)

type Fetcher struct {
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(timeout time.Duration, executor *resilience.Executor) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// Fetch downloads http(s) locations and opens anything else as a file path.
// Bodies are read fully so that retries never see a half-consumed stream.
func (f *Fetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty source location")
	}
	if !isRemote(location) {
		file, err := os.Open(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open local source: %w", err)
		}
		return file, nil
	}

	raw, err := resilience.Do(ctx, f.executor, "fetch.source", func(callCtx context.Context) ([]byte, error) {
		return f.get(callCtx, location)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return nil, resilience.WrapTemporary("fetch source", err)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *Fetcher) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, resilience.NewHTTPStatusError("fetch", "get", resp)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read fetch body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("source %s exceeds %d bytes", location, maxBodyBytes)
	}
	return raw, nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
