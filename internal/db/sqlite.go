package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// schemaSQL is embedded at compile time from schema.sql
//
//go:embed schema.sql
var schemaSQL string

// Fixed width so text order matches time order
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite database connection with write serialization
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex // Serializes all write operations to prevent transaction conflicts
}

// Connect opens a SQLite database with WAL mode enabled
func Connect(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("Failed to set pragma")
		}
	}

	log.Info().Str("path", dbPath).Msg("Connected to SQLite database")
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is usable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// EnsureSchema creates tables if they don't exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debug().Msg("Database schema ensured")
	return nil
}

// RecordRefresh inserts or replaces a refresh row
func (db *DB) RecordRefresh(ctx context.Context, r Refresh) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO gtfs_refresh_log
			(refresh_id, started_at, finished_at, status, source_url, file_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(),
		r.StartedAt.UTC().Format(timeFormat),
		r.FinishedAt.UTC().Format(timeFormat),
		r.Status,
		r.SourceURL,
		r.FileCount,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record refresh: %w", err)
	}
	return nil
}

// LastRefresh returns the most recently started refresh
func (db *DB) LastRefresh(ctx context.Context) (*Refresh, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT refresh_id, started_at, finished_at, status, source_url, file_count, error
		FROM gtfs_refresh_log
		ORDER BY started_at DESC
		LIMIT 1`)

	var (
		r                   Refresh
		id, started, finish string
	)
	err := row.Scan(&id, &started, &finish, &r.Status, &r.SourceURL, &r.FileCount, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last refresh: %w", err)
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse refresh id: %w", err)
	}
	if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(timeFormat, finish); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at: %w", err)
	}
	return &r, nil
}

// PruneRefreshes deletes refresh rows older than retention, always keeping the newest
func (db *DB) PruneRefreshes(ctx context.Context, retention time.Duration) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(timeFormat)
	result, err := db.conn.ExecContext(ctx, `
		DELETE FROM gtfs_refresh_log
		WHERE started_at < ?
		  AND refresh_id <> (SELECT refresh_id FROM gtfs_refresh_log ORDER BY started_at DESC LIMIT 1)`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune refresh log: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Pruned refresh log")
	}
	return deleted, nil
}
