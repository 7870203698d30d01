package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS conversion_tasks (
	id                 TEXT PRIMARY KEY,
	trace_id           TEXT NOT NULL DEFAULT '',
	file_name          TEXT NOT NULL,
	status             TEXT NOT NULL,
	progress           INTEGER NOT NULL,
	message            TEXT NOT NULL DEFAULT '',
	width              INTEGER NOT NULL,
	height             INTEGER NOT NULL,
	transition         TEXT NOT NULL,
	duration_per_slide INTEGER NOT NULL,
	page_count         INTEGER,
	video_url          TEXT NOT NULL DEFAULT '',
	download_url       TEXT NOT NULL DEFAULT '',
	req_id             TEXT NOT NULL DEFAULT '',
	vid                TEXT NOT NULL DEFAULT '',
	error              JSONB,
	logs               JSONB NOT NULL DEFAULT '[]',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
)`

func ConnectDB(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}
