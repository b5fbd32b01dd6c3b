// Package postgres persists the interaction log.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const schemaLockID int64 = 2026101701

type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *InteractionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS interactions (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	route TEXT NOT NULL,
	answer TEXT NOT NULL,
	citations JSONB NOT NULL DEFAULT '[]'::jsonb,
	doc_count INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_interactions_route ON interactions(route);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *InteractionRepository) Record(ctx context.Context, interaction domain.Interaction) error {
	citations := interaction.Citations
	if citations == nil {
		citations = []string{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	createdAt := interaction.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO interactions (id, question, route, answer, citations, doc_count, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
`, interaction.ID, interaction.Question, string(interaction.Route), interaction.Answer,
		string(citationsJSON), interaction.DocCount, interaction.DurationMS, createdAt)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// ListRecent returns the newest interactions first.
func (r *InteractionRepository) ListRecent(ctx context.Context, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, question, route, answer, citations, doc_count, duration_ms, created_at
FROM interactions
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Interaction, 0, limit)
	for rows.Next() {
		var (
			item          domain.Interaction
			route         string
			citationsJSON []byte
		)
		if err := rows.Scan(&item.ID, &item.Question, &route, &item.Answer, &citationsJSON,
			&item.DocCount, &item.DurationMS, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		item.Route = domain.Route(route)
		if len(citationsJSON) > 0 {
			if err := json.Unmarshal(citationsJSON, &item.Citations); err != nil {
				return nil, fmt.Errorf("decode citations: %w", err)
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}
