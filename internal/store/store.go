// Package store defines the transactional key-value collaborator that holds
// every presale record. Keys are opaque strings built by the caller; values
// are JSON documents.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key has no record.
	ErrNotFound = errors.New("store: record not found")
	// ErrExists is returned by Create when the key is already taken.
	ErrExists = errors.New("store: record already exists")
	// ErrReadOnly is returned by writes inside a View transaction.
	ErrReadOnly = errors.New("store: read-only transaction")
)

// Record is one raw key/value pair returned by List.
type Record struct {
	Key   string          `db:"key" json:"key"`
	Value json.RawMessage `db:"value" json:"value"`
}

// Decode unmarshals the record value into dst.
func (r Record) Decode(dst any) error {
	return Decode(r.Key, r.Value, dst)
}

// Tx is a unit of work. Reads observe the transaction's own writes.
type Tx interface {
	Get(key string, dst any) error
	Create(key string, v any) error
	Put(key string, v any) error
	List(prefix string) ([]Record, error)
}

// Store runs functions inside transactions. Atomic commits every write made
// by fn when fn returns nil and discards all of them otherwise.
type Store interface {
	Atomic(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
}

// Encode marshals a value for storage.
func Encode(key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return data, nil
}

// Decode unmarshals a stored value.
func Decode(key string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
