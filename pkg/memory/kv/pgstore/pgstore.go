// Package pgstore is a kv.Store backed by a PostgreSQL table.
package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/inercia/go-llm-unify/pkg/memory/kv"
)

const defaultTableName = "conversation_memory"

// Querier is the subset of pgx used by the store. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps one row per key with the value in a JSONB column
type Store struct {
	db        Querier
	tableName string
}

// Option configures a Store
type Option func(*Store)

// WithTableName overrides the default "conversation_memory" table. The name
// is quoted with pgx.Identifier since it is interpolated into SQL.
func WithTableName(name string) Option {
	return func(s *Store) {
		s.tableName = pgx.Identifier{name}.Sanitize()
	}
}

// New returns a Store using db
func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, tableName: defaultTableName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ kv.Store = (*Store)(nil)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the table if it does not exist. Production setups
// should prefer their own migrations.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return errors.Wrap(err, "pgstore: create table")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.tableName)

	var value []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: get")
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, s.tableName)

	if _, err := s.db.Exec(ctx, query, key, value); err != nil {
		return errors.Wrap(err, "pgstore: set")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.tableName)
	if _, err := s.db.Exec(ctx, query, key); err != nil {
		return errors.Wrap(err, "pgstore: delete")
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf(`SELECT key FROM %s WHERE key LIKE $1 ESCAPE '\' ORDER BY key`, s.tableName)

	rows, err := s.db.Query(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, errors.Wrap(err, "pgstore: keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "pgstore: scan key")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pgstore: keys")
	}
	return keys, nil
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}
