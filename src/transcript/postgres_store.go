package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS support_transcripts (
    id              TEXT PRIMARY KEY,
    created_at      TIMESTAMPTZ NOT NULL,
    question        TEXT NOT NULL,
    attachment_text TEXT NOT NULL DEFAULT '',
    provider        TEXT NOT NULL,
    model           TEXT NOT NULL,
    outcome         TEXT NOT NULL,
    answer          TEXT NOT NULL DEFAULT '',
    error           TEXT NOT NULL DEFAULT '',
    status_code     INTEGER NOT NULL DEFAULT 0,
    latency_ms      BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS support_transcripts_created_at_idx ON support_transcripts (created_at DESC);
`

// PostgresStore writes records to the support_transcripts table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// CreateSchema creates the table and index if they are missing.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := ps.DB.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create transcript schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Save(ctx context.Context, rec Record) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
		INSERT INTO support_transcripts
			(id, created_at, question, attachment_text, provider, model, outcome, answer, error, status_code, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.CreatedAt, rec.Question, rec.AttachmentText, rec.Provider, rec.Model,
		rec.Outcome, rec.Answer, rec.Error, rec.StatusCode, rec.LatencyMS)
	return err
}

func (ps *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `
		SELECT id, created_at, question, attachment_text, provider, model, outcome, answer, error, status_code, latency_ms
		FROM support_transcripts
		ORDER BY created_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Question, &rec.AttachmentText, &rec.Provider, &rec.Model,
			&rec.Outcome, &rec.Answer, &rec.Error, &rec.StatusCode, &rec.LatencyMS)
		return rec, err
	})
}

func (ps *PostgresStore) Close(context.Context) error {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
	return nil
}
