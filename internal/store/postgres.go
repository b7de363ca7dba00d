package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Postgres keeps every entity as a row in a single kv table. The schema is
// created on startup so a fresh database works out of the box:
//
//	CREATE TABLE IF NOT EXISTS kv_entries (
//	    key   TEXT PRIMARY KEY,
//	    value BYTEA NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	)
type Postgres struct {
	DB *sqlx.DB
}

func NewPostgres(db *sqlx.DB) (*Postgres, error) {
	schema := `CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := `SELECT value FROM kv_entries WHERE key = $1`
	err := p.DB.GetContext(ctx, &value, query, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv_entries (key, value, updated_at)
	          VALUES ($1, $2, now())
	          ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`
	_, err := p.DB.ExecContext(ctx, query, key, value)
	return err
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.DB.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}
