// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package storage defines the wallet's pluggable persistence contract
// (spec §4.1 "Storage pluggability") and an init-only registry of named
// backend constructors, mirroring the registration-only plugin pattern
// the specification uses for storage, state-proof parsers, and payment
// methods (spec §5 "process-wide tables with init-only lifecycle").
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors every backend returns for the two outcomes the
// wallet layer must distinguish to produce ierr.CodeAlreadyExists and
// ierr.CodeNotFound (spec §4.1 invariants a, b).
var (
	ErrAlreadyExists = errors.New("storage: record already exists")
	ErrNotFound      = errors.New("storage: record not found")
)

// Record is the storage-layer representation of a wallet record: every
// value and every tag name/value the wallet hands to Storage is already
// encrypted, so Storage itself never reasons about plaintext.
type Record struct {
	Type  []byte
	ID    []byte
	Value []byte
	Tags  []Tag
}

// Tag is a single stored tag. Plaintext is true for tags whose name was
// prefixed with "~" before encryption of the name was skipped by the
// wallet layer (spec §3 "Wallet record"); Storage only stores it with
// the tag, never interpreting the bytes.
type Tag struct {
	Name      []byte
	Value     []byte
	Plaintext bool
}

// Cursor iterates query results opened by Search.
type Cursor interface {
	// Next returns the next matching record, or ok=false when exhausted.
	Next(ctx context.Context) (rec *Record, ok bool, err error)
	// TotalCount returns the total match count if the backend computed
	// one eagerly, or -1 if unknown.
	TotalCount() int
	Close() error
}

// Storage is the nine-method capability the wallet depends on
// (spec §4.1): every backend — the default embedded KV store, or a
// registered alternative — implements exactly this surface.
type Storage interface {
	Add(ctx context.Context, rec *Record) error
	UpdateValue(ctx context.Context, typ, id, value []byte) error
	UpdateTags(ctx context.Context, typ, id []byte, tags []Tag) error
	AddTags(ctx context.Context, typ, id []byte, tags []Tag) error
	DeleteTags(ctx context.Context, typ, id []byte, names [][]byte) error
	Delete(ctx context.Context, typ, id []byte) error
	Get(ctx context.Context, typ, id []byte) (*Record, error)
	// Search returns every record of type typ; the wallet's query
	// engine decrypts tags and applies the tag query itself, so
	// Storage's job is only to enumerate everything of that type.
	Search(ctx context.Context, typ []byte) (Cursor, error)
	Close() error
}

// Factory constructs a Storage backend from a connection string (the
// backend decides its own format — a file path for the embedded store,
// a DSN for Postgres, a project id for Firestore).
type Factory func(connection string) (Storage, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a named backend constructor to the process-wide
// registry. Registration cannot be undone (spec §5): once a name is
// taken, Register with the same name again is rejected.
func Register(name string, factory Factory) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("storage: backend %q already registered", name)
	}
	factories[name] = factory
	return nil
}

// Open builds a Storage instance from a registered backend name and a
// backend-specific connection string.
func Open(name, connection string) (Storage, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered under %q", name)
	}
	return factory(connection)
}

// Registered reports whether name has a registered backend, for
// diagnostics and tests.
func Registered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[name]
	return ok
}
