// Package sqlitestore is a kv.Store backed by a SQLite database file, using
// the pure Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/inercia/go-llm-unify/pkg/memory/kv"
)

const schema = `CREATE TABLE IF NOT EXISTS conversation_memory (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Store keeps sessions in the conversation_memory table
type Store struct {
	db *sql.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlitestore: open")
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlitestore: create table")
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM conversation_memory WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "sqlitestore: get")
	}
	return []byte(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversation_memory (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(value))
	return errors.Wrap(err, "sqlitestore: set")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_memory WHERE key = ?`, key)
	return errors.Wrap(err, "sqlitestore: delete")
}

// Keys matches the prefix with substr, LIKE would be case-insensitive
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM conversation_memory WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "sqlitestore: keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "sqlitestore: scan key")
		}
		keys = append(keys, key)
	}
	return keys, errors.Wrap(rows.Err(), "sqlitestore: keys")
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
