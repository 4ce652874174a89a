// Package postgres implements the record store on PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/presale_layer/internal/store"
)

// serializationFailure is the SQLSTATE Postgres reports when a SERIALIZABLE
// transaction loses a conflict.
const serializationFailure = "40001"

// DefaultMaxRetries bounds how often a conflicting transaction is replayed.
const DefaultMaxRetries = 3

// Store implements store.Store backed by the kv_records table.
type Store struct {
	db         *sqlx.DB
	maxRetries int
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, maxRetries: DefaultMaxRetries, now: time.Now}
}

// Open connects to dsn with the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Atomic runs fn inside a SERIALIZABLE transaction, replaying it when
// Postgres aborts the transaction with a serialization failure.
func (s *Store) Atomic(ctx context.Context, fn func(store.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = s.run(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, func(tx store.Tx) error {
		return fn(readOnly{tx})
	})
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(&txn{ctx: ctx, tx: sqlTx, now: s.now}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == serializationFailure
}

type txn struct {
	ctx context.Context
	tx  *sqlx.Tx
	now func() time.Time
}

func (t *txn) Get(key string, dst any) error {
	var raw []byte
	err := t.tx.GetContext(t.ctx, &raw, `SELECT value FROM kv_records WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return store.Decode(key, raw, dst)
}

func (t *txn) Create(key string, v any) error {
	data, err := store.Encode(key, v)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO kv_records (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, data, t.now().UTC())
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if n == 0 {
		return store.ErrExists
	}
	return nil
}

func (t *txn) Put(key string, v any) error {
	data, err := store.Encode(key, v)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO kv_records (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, data, t.now().UTC())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (t *txn) List(prefix string) ([]store.Record, error) {
	var out []store.Record
	err := t.tx.SelectContext(t.ctx, &out, `
		SELECT key, value FROM kv_records
		WHERE key LIKE $1 ESCAPE '\'
		ORDER BY key
	`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type readOnly struct {
	store.Tx
}

func (readOnly) Create(string, any) error { return store.ErrReadOnly }
func (readOnly) Put(string, any) error    { return store.ErrReadOnly }
