// Package memory is an in-memory store. It is safe for concurrent use and is
// intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/R3E-Network/presale_layer/internal/store"
)

// Store keeps JSON documents in a map guarded by a single writer lock, which
// serializes every Atomic call.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string][]byte)}
}

// Atomic runs fn with write access. Writes are buffered and applied only when
// fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{base: s.records, writes: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, v := range tx.writes {
		s.records[k] = v
	}
	return nil
}

// View runs fn with read access only.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&txn{base: s.records, readOnly: true})
}

// Len returns the number of committed records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type txn struct {
	base     map[string][]byte
	writes   map[string][]byte
	readOnly bool
}

func (t *txn) lookup(key string) ([]byte, bool) {
	if v, ok := t.writes[key]; ok {
		return v, true
	}
	v, ok := t.base[key]
	return v, ok
}

func (t *txn) Get(key string, dst any) error {
	data, ok := t.lookup(key)
	if !ok {
		return store.ErrNotFound
	}
	return store.Decode(key, data, dst)
}

func (t *txn) Create(key string, v any) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	if _, ok := t.lookup(key); ok {
		return store.ErrExists
	}
	return t.Put(key, v)
}

func (t *txn) Put(key string, v any) error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	data, err := store.Encode(key, v)
	if err != nil {
		return err
	}
	t.writes[key] = data
	return nil
}

func (t *txn) List(prefix string) ([]store.Record, error) {
	seen := make(map[string]struct{})
	var out []store.Record
	for k, v := range t.writes {
		if strings.HasPrefix(k, prefix) {
			seen[k] = struct{}{}
			out = append(out, store.Record{Key: k, Value: v})
		}
	}
	for k, v := range t.base {
		if _, dup := seen[k]; dup || !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, store.Record{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
