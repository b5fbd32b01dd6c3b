package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONLoggerToAddsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "rag-api", "warn")

	logger.Info("hidden")
	logger.Warn("router_route", "route", "generated")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "rag-api" || entry["msg"] != "router_route" || entry["route"] != "generated" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestDurationsAndErrorsAreFlattened(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "worker", "info")

	logger.Info("worker_ask_done", "elapsed", 1500*time.Microsecond, "error", errors.New("qdrant search: 503"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["elapsed"] != 1.5 {
		t.Fatalf("elapsed = %v, want 1.5", entry["elapsed"])
	}
	if entry["error"] != "qdrant search: 503" {
		t.Fatalf("error = %v", entry["error"])
	}
	if _, ok := entry["source"]; ok {
		t.Fatal("source must only be added at debug level")
	}
}

func TestInstallSetsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Install(&buf, "ragctl", "debug")
	slog.Debug("ingest_batch_indexed", "from", 0)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "ragctl" || entry["source"] == nil {
		t.Fatalf("unexpected entry %v", entry)
	}
}
