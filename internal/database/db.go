package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"leakdesk/internal/config"
)

func Open(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS mutation_journal (
	id          BIGSERIAL PRIMARY KEY,
	ticket_id   TEXT NOT NULL,
	ticket_key  TEXT NOT NULL,
	action      TEXT NOT NULL,
	email_type  TEXT,
	outcome     TEXT NOT NULL,
	endpoint    TEXT,
	error       TEXT,
	payload     TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS mutation_journal_key_idx ON mutation_journal (ticket_key, created_at DESC);
CREATE INDEX IF NOT EXISTS mutation_journal_outcome_idx ON mutation_journal (outcome, created_at DESC);
`

// Migrate creates the journal table when it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
