// ABOUTME: SQLite implementation of the KV interface using modernc.org/sqlite
// ABOUTME: Stores each persistence scope as one row with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteKV implements the KV interface using SQLite
type SQLiteKV struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteKV creates a new SQLite-backed KV at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteKV{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteKV) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_state (
			scope      TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteKV) Load(ctx context.Context, scope string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv_state WHERE scope = ?", scope).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading scope %q: %w", scope, err)
	}
	return value, nil
}

func (s *SQLiteKV) Save(ctx context.Context, scope string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (scope, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving scope %q: %w", scope, err)
	}
	return nil
}

func (s *SQLiteKV) Delete(ctx context.Context, scope string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_state WHERE scope = ?", scope)
	if err != nil {
		return fmt.Errorf("deleting scope %q: %w", scope, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
