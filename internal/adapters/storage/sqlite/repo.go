package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// ledgerScope namespaces the tracker's single root record.
const (
	ledgerScope = "ledger"
	ledgerKey   = "root"
)

// Store is a namespaced key-value store over one sqlite file. The tracker
// keeps its whole ledger as a single versioned record under the ledger
// scope; extra scopes are available for adapters that need their own
// durable bits.
type Store struct {
	db *sql.DB
}

// Open opens the store at path, creating parent directories and the
// schema as needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the requested operation.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate handles migrate.
func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS kv (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Get returns the value under (scope, key). A missing key returns
// (nil, nil).
func (s *Store) Get(ctx context.Context, scope, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE scope = ? AND key = ?`, scope, key)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", scope, key, err)
	}
	return value, nil
}

// Set writes value under (scope, key) in a single transaction.
func (s *Store) Set(ctx context.Context, scope, key string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set %s/%s: %w", scope, key, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set %s/%s: %w", scope, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes (scope, key). Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, scope, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE scope = ? AND key = ?`, scope, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", scope, key, err)
	}
	return nil
}

// Load returns the ledger root record, or (nil, nil) on first run.
// Implements the persistence gateway.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	return s.Get(ctx, ledgerScope, ledgerKey)
}

// Save replaces the ledger root record atomically.
func (s *Store) Save(ctx context.Context, data []byte) error {
	return s.Set(ctx, ledgerScope, ledgerKey, data)
}
