// Package store persists the pipeline's report rows and watermark.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/JonMunkholm/customs/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// TxStarter is a DBTX that can open transactions. Satisfied by *pgxpool.Pool.
type TxStarter interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// reportColumns is the destination schema. count is stored as text.
var reportColumns = []string{"code", "count", "category"}

// ReportLoader implements core.ReportSink on PostgreSQL.
type ReportLoader struct {
	db     TxStarter
	schema string
	table  string
}

// NewReportLoader returns a loader writing to schema.table.
func NewReportLoader(db TxStarter, schema, table string) *ReportLoader {
	if schema == "" {
		schema = "public"
	}
	return &ReportLoader{db: db, schema: schema, table: table}
}

// ReportDDL returns the statements that create the report table and its
// code index. Every statement is a no-op when the object already exists.
func ReportDDL(schema, table string) []string {
	qualified := pgx.Identifier{schema, table}.Sanitize()
	return []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    code     text,
    count    text,
    category text
)`, qualified),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (code)`,
			pgx.Identifier{table + "_code_idx"}.Sanitize(), qualified),
	}
}

// EnsureTable creates the report table if absent. Safe to call repeatedly,
// including from concurrent processes.
func (l *ReportLoader) EnsureTable(ctx context.Context) error {
	for _, stmt := range ReportDDL(l.schema, l.table) {
		if _, err := l.db.Exec(ctx, stmt); err != nil && !isAlreadyExists(err) {
			return err
		}
	}
	return nil
}

// Load appends rows using the COPY protocol in a single transaction: either
// every row of the report lands or none does.
func (l *ReportLoader) Load(ctx context.Context, rows []core.ReportRow) (int64, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{l.schema, l.table},
		reportColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.Code, strconv.Itoa(r.Count), r.Category}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy report rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit report rows: %w", err)
	}
	return n, nil
}

// isAlreadyExists reports whether err is PostgreSQL's answer to a concurrent
// CREATE ... IF NOT EXISTS losing the race.
func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42P06", "42P07", "23505": // duplicate_schema, duplicate_table, unique_violation on catalog
		return true
	}
	return false
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// PostgresWatermarks implements core.WatermarkStore on a key/value table.
type PostgresWatermarks struct {
	db DBTX
}

const watermarkDDL = `
CREATE TABLE IF NOT EXISTS pipeline_watermarks (
  key        text PRIMARY KEY,
  value      text NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
)`

// NewPostgresWatermarks ensures the watermark table exists.
func NewPostgresWatermarks(ctx context.Context, db DBTX) (*PostgresWatermarks, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if _, err := db.Exec(ctx, watermarkDDL); err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("ensure watermark table: %w", err)
	}
	return &PostgresWatermarks{db: db}, nil
}

// AttachPostgresWatermarks uses the watermark table without creating it.
// Until the table exists, Get reports every key as absent.
func AttachPostgresWatermarks(db DBTX) *PostgresWatermarks {
	return &PostgresWatermarks{db: db}
}

// Get returns the stored value for key.
func (s *PostgresWatermarks) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM pipeline_watermarks WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value for key, replacing any previous value.
func (s *PostgresWatermarks) Set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO pipeline_watermarks (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}
