// Package kvstore is the local key/value database of the service. It holds
// small pieces of state that must survive restarts: loopback ports, the
// device ESN and profile selections.
//
// Values are stored as JSON text in one of three tables. TableLocal is
// private to this installation, TableSession is reset together with the
// login session and TableShared is visible to companion processes.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Table selects one of the key/value tables.
type Table string

const (
	TableLocal   Table = "local"
	TableSession Table = "session"
	TableShared  Table = "shared"
)

func (t Table) valid() bool {
	switch t {
	case TableLocal, TableSession, TableShared:
		return true
	}
	return false
}

// DB is a typed key/value view over a sqlite database. It is safe for
// concurrent use.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file if needed, applies migrations and returns
// a ready DB.
func Open(cfg Config) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{db: db, logger: logger}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// GetValue decodes the value stored under key into dest. It reports false,
// leaving dest untouched, when the key is absent.
func (d *DB) GetValue(ctx context.Context, table Table, key string, dest any) (bool, error) {
	if !table.valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	var raw string
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = ?", table)
	err := d.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s.%s: %w", table, key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("%w: %s.%s: %v", ErrDecode, table, key, err)
	}
	return true, nil
}

// SetValue stores value under key, replacing any previous value.
func (d *DB) SetValue(ctx context.Context, table Table, key string, value any) error {
	if !table.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s.%s: %w", table, key, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', 'now')`, table)
	if _, err := d.db.ExecContext(ctx, query, key, string(raw)); err != nil {
		return fmt.Errorf("set %s.%s: %w", table, key, err)
	}
	return nil
}

// DeleteKey removes key. Deleting an absent key is not an error.
func (d *DB) DeleteKey(ctx context.Context, table Table, key string) error {
	if !table.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", table)
	if _, err := d.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s.%s: %w", table, key, err)
	}
	return nil
}

// GetString returns the string under key, or def when it is absent or
// unreadable.
func (d *DB) GetString(ctx context.Context, table Table, key, def string) string {
	return getOr(ctx, d, table, key, def)
}

// GetInt returns the integer under key, or def when it is absent or
// unreadable.
func (d *DB) GetInt(ctx context.Context, table Table, key string, def int) int {
	return getOr(ctx, d, table, key, def)
}

func (d *DB) GetBool(ctx context.Context, table Table, key string, def bool) bool {
	return getOr(ctx, d, table, key, def)
}

func getOr[T any](ctx context.Context, d *DB, table Table, key string, def T) T {
	var value T
	found, err := d.GetValue(ctx, table, key, &value)
	if err != nil {
		d.logger.WarnContext(
			ctx,
			"falling back to default value",
			slog.String("table", string(table)),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return def
	}
	if !found {
		return def
	}
	return value
}
