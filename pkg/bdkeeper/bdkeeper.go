// Package bdkeeper is the durable key/value record keeper backed by SQLite.
package bdkeeper

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Keeper stores opaque values under string keys.
type Keeper struct {
	db *sql.DB
}

// NewKeeper wraps an already migrated database.
func NewKeeper(db *sql.DB) *Keeper {
	return &Keeper{db: db}
}

// Open creates or opens the database at path and applies migrations.
// SQLite allows one writer, so the pool is limited to a single connection.
func Open(path string) (*Keeper, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewKeeper(db), nil
}

// Migrate applies the embedded goose migrations. goose's own logger is
// silenced: it writes to stdout, which carries command output.
func Migrate(db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Get returns the value stored under key. ok is false when no record exists.
func (k *Keeper) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = k.db.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get record %q: %w", key, err)
	}
	return value, true, nil
}

// Put inserts or overwrites the record under key.
func (k *Keeper) Put(ctx context.Context, key string, value []byte) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO records (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("put record %q: %w", key, err)
	}
	return nil
}

// Delete removes the record under key. Deleting a missing record is not an error.
func (k *Keeper) Delete(ctx context.Context, key string) error {
	if _, err := k.db.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete record %q: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (k *Keeper) Close() error {
	if k.db == nil {
		return nil
	}
	return k.db.Close()
}
