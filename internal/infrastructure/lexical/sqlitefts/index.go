// Package sqlitefts implements the lexical index on SQLite FTS5 with bm25
// ranking.
package sqlitefts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY,
	chunk_key TEXT NOT NULL UNIQUE,
	text TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	title,
	text,
	content=chunks,
	content_rowid=id,
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS chunks_fts_insert AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, title, text) VALUES (new.id, new.title, new.text);
END;
`

type Index struct {
	db *sql.DB
}

// Open opens the index at path; an empty path opens an in-memory index.
func Open(path string) (*Index, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create lexical dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == "" {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create lexical schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

// Index inserts chunks; chunks already present are ignored.
func (i *Index) Index(ctx context.Context, chunks []domain.Chunk) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lexical tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO chunks (chunk_key, text, title, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare lexical insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.Key(), chunk.Text, chunk.Title(), string(meta)); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lexical tx: %w", err)
	}
	return nil
}

// Search returns up to limit chunks ordered by bm25. Scores are negated
// bm25 values so that higher is better.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error) {
	match := matchExpression(query)
	if match == "" || limit <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT c.text, c.metadata, bm25(chunks_fts) AS score
		FROM chunks_fts
		INNER JOIN chunks c ON c.id = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY score, c.id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ScoredChunk, 0, limit)
	for rows.Next() {
		var (
			text  string
			meta  string
			score float64
		)
		if err := rows.Scan(&text, &meta, &score); err != nil {
			return nil, fmt.Errorf("scan lexical row: %w", err)
		}
		metadata := map[string]string{}
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{Text: text, Metadata: metadata},
			Score: -score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lexical rows: %w", err)
	}
	return out, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// matchExpression turns free text into an FTS5 OR query of quoted terms, so
// that user punctuation never reaches the FTS5 parser.
func matchExpression(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}
