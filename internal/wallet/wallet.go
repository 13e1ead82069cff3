// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package wallet implements the C2 wallet component: typed, tagged
// record storage over a pluggable Storage backend, with tags and
// values encrypted at rest and a JSON tag query language evaluated
// against the decrypted tag set.
package wallet

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
	"gopkg.in/yaml.v3"

	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/obslog"
	"github.com/certen/indysdk/internal/wallet/storage"

	_ "github.com/certen/indysdk/internal/wallet/storage/firestore"
	_ "github.com/certen/indysdk/internal/wallet/storage/kv"
	_ "github.com/certen/indysdk/internal/wallet/storage/postgres"
)

const keySize = 32

// descriptor is the small on-disk manifest every wallet directory
// carries (spec §6, "Wallet on disk").
type descriptor struct {
	PoolName    string `yaml:"pool_name"`
	StorageType string `yaml:"storage_type"`
	WalletName  string `yaml:"wallet_name"`
}

// Config describes how to create, open, or delete a wallet.
type Config struct {
	// Name identifies the wallet directory under baseDir.
	Name string
	// PoolName is recorded in the descriptor for informational purposes.
	PoolName string
	// StorageType is a name registered with the storage package
	// ("kv", "postgres", "firestore", ...).
	StorageType string
	// StorageConnection is the backend-specific connection string (a
	// directory for "kv", a DSN for "postgres", a project id for
	// "firestore").
	StorageConnection string
	// Key is the wallet's master key material; a 32-byte encryption
	// key is derived from it via HKDF, scoped to this wallet's name.
	Key []byte
	// BaseDir overrides the default $INDY_HOME/wallets root.
	BaseDir string
}

func (c Config) dir() string {
	base := c.BaseDir
	if base == "" {
		base = defaultBaseDir()
	}
	return filepath.Join(base, c.Name)
}

func defaultBaseDir() string {
	if home := os.Getenv("INDY_HOME"); home != "" {
		return filepath.Join(home, "wallets")
	}
	return filepath.Join(os.Getenv("HOME"), ".indy_client", "wallets")
}

// Record is the application-facing, fully decrypted view of a wallet
// record.
type Record struct {
	Type  string
	ID    string
	Value []byte
	Tags  map[string][]byte
}

// GetOptions controls which fields Get populates, per spec §4.1
// ("options enumerate {retrieveType, retrieveValue, retrieveTags} with
// defaults false,true,false").
type GetOptions struct {
	RetrieveType  bool
	RetrieveValue bool
	RetrieveTags  bool
}

// DefaultGetOptions returns the spec-mandated defaults.
func DefaultGetOptions() GetOptions {
	return GetOptions{RetrieveValue: true}
}

// SearchOptions controls Search's field retrieval and counting, per
// spec §4.1 ("search options additionally enumerate {retrieveRecords,
// retrieveTotalCount} defaulted true,false").
type SearchOptions struct {
	RetrieveType       bool
	RetrieveValue      bool
	RetrieveTags       bool
	RetrieveRecords    bool
	RetrieveTotalCount bool
}

// DefaultSearchOptions returns the spec-mandated defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{RetrieveValue: true, RetrieveRecords: true}
}

// Wallet is one open wallet handle's runtime state.
type Wallet struct {
	name    string
	storage storage.Storage
	key     [keySize]byte
	log     *obslog.Logger
}

var (
	registryMu sync.Mutex
	open       = map[handle.Handle]*Wallet{}
	openNames  = map[string]bool{}
)

// Create writes a wallet descriptor and initializes its storage
// backend, without opening a handle.
func Create(cfg Config) error {
	dir := cfg.dir()
	if _, err := os.Stat(dir); err == nil {
		return ierr.Newf(ierr.CodeAlreadyExists, "wallet %q already exists", cfg.Name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ierr.Wrap(ierr.CodeAccessFailed, err, "create wallet directory")
	}

	desc := descriptor{PoolName: cfg.PoolName, StorageType: cfg.StorageType, WalletName: cfg.Name}
	data, err := yaml.Marshal(desc)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal wallet descriptor")
	}
	if err := os.WriteFile(filepath.Join(dir, "wallet.yaml"), data, 0o600); err != nil {
		return ierr.Wrap(ierr.CodeAccessFailed, err, "write wallet descriptor")
	}

	store, err := storage.Open(cfg.StorageType, cfg.StorageConnection)
	if err != nil {
		return ierr.Wrap(ierr.CodeStorageError, err, "initialize wallet storage")
	}
	return store.Close()
}

// Open opens a previously created wallet and returns a process-wide
// handle. Opening a wallet that is already open in this process fails
// with AlreadyOpened (spec §4.1 concurrency invariant).
func Open(cfg Config) (handle.Handle, error) {
	registryMu.Lock()
	if openNames[cfg.Name] {
		registryMu.Unlock()
		return handle.Invalid, ierr.Newf(ierr.CodeAlreadyOpened, "wallet %q is already open in this process", cfg.Name)
	}
	registryMu.Unlock()

	dir := cfg.dir()
	descBytes, err := os.ReadFile(filepath.Join(dir, "wallet.yaml"))
	if err != nil {
		return handle.Invalid, ierr.Wrap(ierr.CodeNotFound, err, "read wallet descriptor")
	}
	var desc descriptor
	if err := yaml.Unmarshal(descBytes, &desc); err != nil {
		return handle.Invalid, ierr.Wrap(ierr.CodeInvalidStructure, err, "parse wallet descriptor")
	}

	store, err := storage.Open(desc.StorageType, cfg.StorageConnection)
	if err != nil {
		return handle.Invalid, ierr.Wrap(ierr.CodeStorageError, err, "open wallet storage")
	}

	key, err := deriveKey(cfg.Key, cfg.Name)
	if err != nil {
		store.Close()
		return handle.Invalid, ierr.Wrap(ierr.CodeEncryptionErr, err, "derive wallet key")
	}

	w := &Wallet{name: cfg.Name, storage: store, key: key, log: obslog.Default().Component("wallet").WithHandle("wallet", 0)}

	h := handle.Next()
	registryMu.Lock()
	open[h] = w
	openNames[cfg.Name] = true
	registryMu.Unlock()

	w.log = obslog.Default().Component("wallet").WithHandle("wallet", int(h))
	w.log.Info("wallet opened", "name", cfg.Name, "storage", desc.StorageType)
	return h, nil
}

// Close releases a wallet handle and its underlying storage.
func Close(h handle.Handle) error {
	registryMu.Lock()
	w, ok := open[h]
	if ok {
		delete(open, h)
		delete(openNames, w.name)
	}
	registryMu.Unlock()
	if !ok {
		return ierr.Newf(ierr.CodeInvalidHandle, "wallet handle %d is not open", h)
	}
	if err := w.storage.Close(); err != nil {
		return ierr.Wrap(ierr.CodeStorageError, err, "close wallet storage")
	}
	return nil
}

// Delete removes a wallet's on-disk directory. It fails if the wallet
// is currently open in this process.
func Delete(cfg Config) error {
	registryMu.Lock()
	isOpen := openNames[cfg.Name]
	registryMu.Unlock()
	if isOpen {
		return ierr.Newf(ierr.CodeInvalidState, "wallet %q is open and cannot be deleted", cfg.Name)
	}
	if err := os.RemoveAll(cfg.dir()); err != nil {
		return ierr.Wrap(ierr.CodeAccessFailed, err, "delete wallet directory")
	}
	return nil
}

func lookup(h handle.Handle) (*Wallet, error) {
	registryMu.Lock()
	w, ok := open[h]
	registryMu.Unlock()
	if !ok {
		return nil, ierr.Newf(ierr.CodeInvalidHandle, "wallet handle %d is not open", h)
	}
	return w, nil
}

func deriveKey(secret []byte, walletName string) ([keySize]byte, error) {
	var key [keySize]byte
	kdf := hkdf.New(sha256.New, secret, []byte(walletName), []byte("indysdk-wallet-key"))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// Add stores a new record, failing with AlreadyExists if (type,id) is
// already present (spec §4.1 invariant a).
func Add(h handle.Handle, typ, id string, value []byte, tags map[string][]byte) error {
	w, err := lookup(h)
	if err != nil {
		return err
	}
	rec, err := w.encodeRecord(typ, id, value, tags)
	if err != nil {
		return err
	}
	if err := w.storage.Add(context.Background(), rec); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// UpdateValue replaces a record's value.
func UpdateValue(h handle.Handle, typ, id string, value []byte) error {
	w, err := lookup(h)
	if err != nil {
		return err
	}
	cipher, err := w.encrypt(value)
	if err != nil {
		return ierr.Wrap(ierr.CodeEncryptionErr, err, "encrypt record value")
	}
	if err := w.storage.UpdateValue(context.Background(), []byte(typ), []byte(id), cipher); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// UpdateTags replaces a record's tag set wholesale.
func UpdateTags(h handle.Handle, typ, id string, tags map[string][]byte) error {
	w, err := lookup(h)
	if err != nil {
		return err
	}
	storageTags, err := w.encodeTags(tags)
	if err != nil {
		return err
	}
	if err := w.storage.UpdateTags(context.Background(), []byte(typ), []byte(id), storageTags); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// AddTags merges additional tags into a record's existing tag set.
func AddTags(h handle.Handle, typ, id string, tags map[string][]byte) error {
	w, err := lookup(h)
	if err != nil {
		return err
	}
	storageTags, err := w.encodeTags(tags)
	if err != nil {
		return err
	}
	if err := w.storage.AddTags(context.Background(), []byte(typ), []byte(id), storageTags); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// DeleteTags removes tags by plaintext name from a record. Since
// encrypted tag names are not recoverable by Storage, names are
// matched wallet-side against the decrypted tag set.
func DeleteTags(h handle.Handle, typ, id string, names []string) error {
	w, err := lookup(h)
	if err != nil {
		return err
	}
	rec, err := w.storage.Get(context.Background(), []byte(typ), []byte(id))
	if err != nil {
		return translateStorageErr(err)
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var toDrop [][]byte
	for _, t := range rec.Tags {
		name, _, err := w.decodeTag(t)
		if err != nil {
			return err
		}
		if drop[name] {
			toDrop = append(toDrop, t.Name)
		}
	}
	if err := w.storage.DeleteTags(context.Background(), []byte(typ), []byte(id), toDrop); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// Delete removes a record.
func Delete(h handle.Handle, typ, id string) error {
	w, err := lookup(h)
	if err != nil {
		return err
	}
	if err := w.storage.Delete(context.Background(), []byte(typ), []byte(id)); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// Get fetches and decrypts a single record (spec §4.1 invariant b: a
// missing record fails NotFound).
func Get(h handle.Handle, typ, id string, opts GetOptions) (*Record, error) {
	w, err := lookup(h)
	if err != nil {
		return nil, err
	}
	rec, err := w.storage.Get(context.Background(), []byte(typ), []byte(id))
	if err != nil {
		return nil, translateStorageErr(err)
	}
	return w.decodeRecord(rec, opts.RetrieveType, opts.RetrieveValue, opts.RetrieveTags)
}

// SearchCursor iterates decrypted, query-filtered records, following
// the open -> FetchNext* -> Close lifecycle.
type SearchCursor struct {
	w          *Wallet
	inner      storage.Cursor
	query      Query
	opts       SearchOptions
	totalCount int
}

// Search opens a cursor over every record of typ whose decrypted tags
// satisfy query.
func Search(h handle.Handle, typ string, query Query, opts SearchOptions) (*SearchCursor, error) {
	w, err := lookup(h)
	if err != nil {
		return nil, err
	}
	inner, err := w.storage.Search(context.Background(), []byte(typ))
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeStorageError, err, "search wallet records")
	}

	cur := &SearchCursor{w: w, inner: inner, query: query, opts: opts, totalCount: -1}
	if opts.RetrieveTotalCount {
		count, err := cur.countMatches(typ)
		if err != nil {
			inner.Close()
			return nil, err
		}
		cur.totalCount = count
		// Re-open since countMatches drained the backend cursor.
		inner2, err := w.storage.Search(context.Background(), []byte(typ))
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeStorageError, err, "search wallet records")
		}
		cur.inner = inner2
	}
	return cur, nil
}

// SearchAll opens a cursor over every record of typ with no query
// predicate.
func SearchAll(h handle.Handle, typ string, opts SearchOptions) (*SearchCursor, error) {
	return Search(h, typ, Query{}, opts)
}

func (c *SearchCursor) countMatches(typ string) (int, error) {
	count := 0
	for {
		rec, ok, err := c.inner.Next(context.Background())
		if err != nil {
			return 0, ierr.Wrap(ierr.CodeStorageError, err, "iterate wallet search")
		}
		if !ok {
			break
		}
		matched, err := c.w.matches(rec, c.query)
		if err != nil {
			return 0, err
		}
		if matched {
			count++
		}
	}
	return count, nil
}

// FetchNext returns the next record satisfying the cursor's query, or
// ok=false once exhausted.
func (c *SearchCursor) FetchNext(ctx context.Context) (rec *Record, ok bool, err error) {
	if !c.opts.RetrieveRecords {
		return nil, false, nil
	}
	for {
		storedRec, hasMore, err := c.inner.Next(ctx)
		if err != nil {
			return nil, false, ierr.Wrap(ierr.CodeStorageError, err, "iterate wallet search")
		}
		if !hasMore {
			return nil, false, nil
		}
		matched, err := c.w.matches(storedRec, c.query)
		if err != nil {
			return nil, false, err
		}
		if !matched {
			continue
		}
		decoded, err := c.w.decodeRecord(storedRec, c.opts.RetrieveType, c.opts.RetrieveValue, c.opts.RetrieveTags)
		if err != nil {
			return nil, false, err
		}
		return decoded, true, nil
	}
}

// TotalCount returns the precomputed match count, or -1 if
// RetrieveTotalCount was not requested.
func (c *SearchCursor) TotalCount() int { return c.totalCount }

// Close releases the cursor's backend resources.
func (c *SearchCursor) Close() error {
	return c.inner.Close()
}

func (w *Wallet) matches(rec *storage.Record, q Query) (bool, error) {
	tags := make(map[string]decryptedTag, len(rec.Tags))
	for _, t := range rec.Tags {
		name, value, err := w.decodeTag(t)
		if err != nil {
			return false, err
		}
		tags[name] = decryptedTag{value: string(value), plaintext: t.Plaintext}
	}
	return q.match(tags)
}

func (w *Wallet) encodeRecord(typ, id string, value []byte, tags map[string][]byte) (*storage.Record, error) {
	cipher, err := w.encrypt(value)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeEncryptionErr, err, "encrypt record value")
	}
	storageTags, err := w.encodeTags(tags)
	if err != nil {
		return nil, err
	}
	return &storage.Record{Type: []byte(typ), ID: []byte(id), Value: cipher, Tags: storageTags}, nil
}

func (w *Wallet) encodeTags(tags map[string][]byte) ([]storage.Tag, error) {
	out := make([]storage.Tag, 0, len(tags))
	for name, value := range tags {
		if isPlaintextTagName(name) {
			out = append(out, storage.Tag{Name: []byte(name), Value: value, Plaintext: true})
			continue
		}
		encName, err := w.encrypt([]byte(name))
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeEncryptionErr, err, "encrypt tag name")
		}
		encValue, err := w.encrypt(value)
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeEncryptionErr, err, "encrypt tag value")
		}
		out = append(out, storage.Tag{Name: encName, Value: encValue, Plaintext: false})
	}
	return out, nil
}

func (w *Wallet) decodeTag(t storage.Tag) (name string, value []byte, err error) {
	if t.Plaintext {
		return string(t.Name), t.Value, nil
	}
	plainName, err := w.decrypt(t.Name)
	if err != nil {
		return "", nil, ierr.Wrap(ierr.CodeEncryptionErr, err, "decrypt tag name")
	}
	plainValue, err := w.decrypt(t.Value)
	if err != nil {
		return "", nil, ierr.Wrap(ierr.CodeEncryptionErr, err, "decrypt tag value")
	}
	return string(plainName), plainValue, nil
}

func (w *Wallet) decodeRecord(rec *storage.Record, retrieveType, retrieveValue, retrieveTags bool) (*Record, error) {
	out := &Record{ID: string(rec.ID)}
	if retrieveType {
		out.Type = string(rec.Type)
	}
	if retrieveValue {
		plain, err := w.decrypt(rec.Value)
		if err != nil {
			return nil, ierr.Wrap(ierr.CodeEncryptionErr, err, "decrypt record value")
		}
		out.Value = plain
	}
	if retrieveTags {
		out.Tags = make(map[string][]byte, len(rec.Tags))
		for _, t := range rec.Tags {
			name, value, err := w.decodeTag(t)
			if err != nil {
				return nil, err
			}
			out.Tags[name] = value
		}
	}
	return out, nil
}

func (w *Wallet) encrypt(plain []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &w.key), nil
}

func (w *Wallet) decrypt(data []byte) ([]byte, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], data[:24])
	plain, ok := secretbox.Open(nil, data[24:], &nonce, &w.key)
	if !ok {
		return nil, fmt.Errorf("secretbox authentication failed")
	}
	return plain, nil
}

func isPlaintextTagName(name string) bool {
	return len(name) > 0 && name[0] == '~'
}

func translateStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		return ierr.New(ierr.CodeAlreadyExists, "record already exists")
	case errors.Is(err, storage.ErrNotFound):
		return ierr.New(ierr.CodeNotFound, "record not found")
	default:
		return ierr.Wrap(ierr.CodeStorageError, err, "storage operation failed")
	}
}
