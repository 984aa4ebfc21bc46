package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS gtfs_refresh_log (
    refresh_id   UUID PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    status       TEXT NOT NULL,
    source_url   TEXT NOT NULL DEFAULT '',
    file_count   INTEGER NOT NULL DEFAULT 0,
    error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_gtfs_refresh_log_started_at
    ON gtfs_refresh_log (started_at);
`

// PostgresStore keeps the refresh log in Postgres
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a connection pool and checks it
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Connected to Postgres database")
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the pool is usable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates tables if they don't exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordRefresh inserts or updates a refresh row
func (s *PostgresStore) RecordRefresh(ctx context.Context, r Refresh) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gtfs_refresh_log
			(refresh_id, started_at, finished_at, status, source_url, file_count, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (refresh_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			file_count = EXCLUDED.file_count,
			error = EXCLUDED.error`,
		r.ID, r.StartedAt, r.FinishedAt, r.Status, r.SourceURL, r.FileCount, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record refresh: %w", err)
	}
	return nil
}

// LastRefresh returns the most recently started refresh
func (s *PostgresStore) LastRefresh(ctx context.Context) (*Refresh, error) {
	var r Refresh
	err := s.pool.QueryRow(ctx, `
		SELECT refresh_id, started_at, finished_at, status, source_url, file_count, error
		FROM gtfs_refresh_log
		ORDER BY started_at DESC
		LIMIT 1`,
	).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.SourceURL, &r.FileCount, &r.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last refresh: %w", err)
	}
	return &r, nil
}

// PruneRefreshes deletes refresh rows older than retention, always keeping the newest
func (s *PostgresStore) PruneRefreshes(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gtfs_refresh_log
		WHERE started_at < $1
		  AND refresh_id <> (SELECT refresh_id FROM gtfs_refresh_log ORDER BY started_at DESC LIMIT 1)`,
		time.Now().Add(-retention),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune refresh log: %w", err)
	}
	return tag.RowsAffected(), nil
}
