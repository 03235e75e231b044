package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteWatermarks implements core.WatermarkStore in a local SQLite file, for
// deployments without a PostgreSQL database for pipeline state.
type SQLiteWatermarks struct {
	db *sql.DB
}

// OpenSQLiteWatermarks opens (creating if needed) the database at path and
// ensures the watermark table exists.
func OpenSQLiteWatermarks(path string) (*SQLiteWatermarks, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Apply PRAGMA's per-connection via DSN so the pool always has them.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS pipeline_watermarks (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return &SQLiteWatermarks{db: db}, nil
}

// Get returns the stored value for key.
func (s *SQLiteWatermarks) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM pipeline_watermarks WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value for key, replacing any previous value.
func (s *SQLiteWatermarks) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pipeline_watermarks (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')`, key, value)
	return err
}

// Close closes the database.
func (s *SQLiteWatermarks) Close() error {
	return s.db.Close()
}
