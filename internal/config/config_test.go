package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv(configFileEnv, "")
	t.Setenv("RAG_POOL_SIZE", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("RAG_LEXICAL_WEIGHT", "")
	t.Setenv("RAG_DENSE_WEIGHT", "")
	t.Setenv("RAG_FUSION_RRF_K", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RAGPoolSize != 10 {
		t.Fatalf("expected default pool size 10, got %d", cfg.RAGPoolSize)
	}
	if cfg.RAGTopK != 4 {
		t.Fatalf("expected default top k 4, got %d", cfg.RAGTopK)
	}
	if cfg.RAGLexicalWeight != 0.45 || cfg.RAGDenseWeight != 0.55 {
		t.Fatalf("expected default weights 0.45/0.55, got %v/%v", cfg.RAGLexicalWeight, cfg.RAGDenseWeight)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("expected chunk window 1000/200, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv(configFileEnv, "")
	t.Setenv("RAG_POOL_SIZE", "20")
	t.Setenv("RAG_TOP_K", "6")
	t.Setenv("RAG_DENSE_WEIGHT", "0.7")
	t.Setenv("RERANK_ENABLED", "false")
	t.Setenv("VECTOR_BACKEND", "BADGER")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RAGPoolSize != 20 || cfg.RAGTopK != 6 {
		t.Fatalf("expected pool/top k 20/6, got %d/%d", cfg.RAGPoolSize, cfg.RAGTopK)
	}
	if cfg.RAGDenseWeight != 0.7 {
		t.Fatalf("expected dense weight 0.7, got %v", cfg.RAGDenseWeight)
	}
	if cfg.RerankEnabled {
		t.Fatalf("expected rerank disabled")
	}
	if cfg.VectorBackend != "badger" {
		t.Fatalf("expected lower-cased backend, got %q", cfg.VectorBackend)
	}
}

func TestLoadReadsTOMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.toml")
	content := `
rag_top_k = 3
qdrant_collection = "aok_test"
log_level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configFileEnv, path)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RAG_TOP_K", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RAGTopK != 3 || cfg.QdrantCollection != "aok_test" {
		t.Fatalf("expected file values, got top k %d collection %q", cfg.RAGTopK, cfg.QdrantCollection)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to override file, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"top k above pool":     {"RAG_POOL_SIZE": "2", "RAG_TOP_K": "4"},
		"unknown backend":      {"VECTOR_BACKEND": "chroma"},
		"openai without key":   {"LLM_PROVIDER": "openai"},
		"overlap exceeds size": {"CHUNK_SIZE": "100", "CHUNK_OVERLAP": "100"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(configFileEnv, "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if !domain.IsKind(err, domain.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv(configFileEnv, filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
