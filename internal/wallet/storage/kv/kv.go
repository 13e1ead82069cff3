// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package kv is the wallet's default Storage backend: an embedded
// key/value database (goleveldb by default, via cometbft-db) holding
// one row per record plus a secondary index entry per tag. Search does
// not read the tag index: it scans every record row of the requested
// type.
package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/indysdk/internal/wallet/storage"
)

func init() {
	_ = storage.Register("kv", func(connection string) (storage.Storage, error) {
		return Open(connection)
	})
}

const (
	recordPrefix = "r:" // r:<type>\x00<id>        -> msgpack-free raw record blob
	tagPrefix    = "t:" // t:<type>\x00<name>\x00<value>\x00<id> -> empty, used as an index
)

// DB is a cometbft-db backed Storage implementation.
type DB struct {
	mu sync.Mutex
	db dbm.DB
}

// Open opens (creating if necessary) a goleveldb database rooted at dir.
func Open(dir string) (*DB, error) {
	db, err := dbm.NewDB("wallet", dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("open wallet kv store at %s: %w", dir, err)
	}
	return &DB{db: db}, nil
}

// OpenWith wraps an already-constructed cometbft-db handle, letting
// callers pick a different backend (memdb for tests, boltdb, badgerdb).
func OpenWith(db dbm.DB) *DB {
	return &DB{db: db}
}

func recordKey(typ, id []byte) []byte {
	return joinKey([]byte(recordPrefix), typ, id)
}

func tagKey(typ []byte, tag storage.Tag, id []byte) []byte {
	return joinKey([]byte(tagPrefix), typ, tag.Name, tag.Value, id)
}

func tagIndexPrefix(typ []byte, tag storage.Tag) []byte {
	return joinKey([]byte(tagPrefix), typ, tag.Name, tag.Value) // with trailing sep, scanned by prefix
}

func joinKey(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// storedRecord is the record as written to the value column: the value
// bytes plus a length-prefixed tag list, so UpdateTags/AddTags can
// rewrite tags without touching Value.
type storedRecord struct {
	value []byte
	tags  []storage.Tag
}

func encodeStoredRecord(r *storedRecord) []byte {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, r.value)
	writeUvarint(&buf, uint64(len(r.tags)))
	for _, t := range r.tags {
		writeLenPrefixed(&buf, t.Name)
		writeLenPrefixed(&buf, t.Value)
		if t.Plaintext {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

func decodeStoredRecord(data []byte) (*storedRecord, error) {
	r := &bytesReader{b: data}
	value, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	tags := make([]storage.Tag, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		val, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		flag, err := r.readByte()
		if err != nil {
			return nil, err
		}
		tags = append(tags, storage.Tag{Name: name, Value: val, Plaintext: flag == 1})
	}
	return &storedRecord{value: value, tags: tags}, nil
}

// Add stores a new record, failing if (type,id) already has a row — the
// wallet layer is responsible for translating that into AlreadyExists.
func (d *DB) Add(ctx context.Context, rec *storage.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := recordKey(rec.Type, rec.ID)
	existing, err := d.db.Get(key)
	if err != nil {
		return fmt.Errorf("check existing record: %w", err)
	}
	if existing != nil {
		return storage.ErrAlreadyExists
	}

	return d.writeRecordLocked(rec.Type, rec.ID, &storedRecord{value: rec.Value, tags: rec.Tags}, nil)
}

// UpdateValue replaces a record's value, leaving its tags untouched.
func (d *DB) UpdateValue(ctx context.Context, typ, id, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.readLocked(typ, id)
	if err != nil {
		return err
	}
	existing.value = value
	return d.writeRecordLocked(typ, id, existing, existing.tags)
}

// UpdateTags replaces a record's tag set wholesale.
func (d *DB) UpdateTags(ctx context.Context, typ, id []byte, tags []storage.Tag) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.readLocked(typ, id)
	if err != nil {
		return err
	}
	oldTags := existing.tags
	existing.tags = tags
	return d.writeRecordLocked(typ, id, existing, oldTags)
}

// AddTags merges additional tags into a record's existing tag set.
func (d *DB) AddTags(ctx context.Context, typ, id []byte, tags []storage.Tag) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.readLocked(typ, id)
	if err != nil {
		return err
	}
	oldTags := existing.tags
	existing.tags = mergeTags(existing.tags, tags)
	return d.writeRecordLocked(typ, id, existing, oldTags)
}

// DeleteTags removes tags by name from a record.
func (d *DB) DeleteTags(ctx context.Context, typ, id []byte, names [][]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.readLocked(typ, id)
	if err != nil {
		return err
	}
	oldTags := existing.tags
	existing.tags = removeTagNames(existing.tags, names)
	return d.writeRecordLocked(typ, id, existing, oldTags)
}

// Delete removes a record and its tag index entries.
func (d *DB) Delete(ctx context.Context, typ, id []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.readLocked(typ, id)
	if err != nil {
		return err
	}
	for _, t := range existing.tags {
		if err := d.db.Delete(tagKey(typ, t, id)); err != nil {
			return fmt.Errorf("delete tag index: %w", err)
		}
	}
	if err := d.db.Delete(recordKey(typ, id)); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Get fetches a single record.
func (d *DB) Get(ctx context.Context, typ, id []byte) (*storage.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, err := d.readLocked(typ, id)
	if err != nil {
		return nil, err
	}
	return &storage.Record{Type: typ, ID: id, Value: existing.value, Tags: existing.tags}, nil
}

// Search returns a cursor over every record of the given type. The
// wallet's query engine applies tag predicates on top of this.
func (d *DB) Search(ctx context.Context, typ []byte) (storage.Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prefix := joinKey([]byte(recordPrefix), typ)
	iter, err := d.db.Iterator(prefix, dbm.PrefixEndBytes(prefix))
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}

	var records []*storage.Record
	for ; iter.Valid(); iter.Next() {
		key := iter.Key()
		id := bytes.TrimPrefix(key, prefix)
		id = bytes.TrimSuffix(id, []byte{0})
		rec, err := decodeStoredRecord(iter.Value())
		if err != nil {
			iter.Close()
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, &storage.Record{Type: typ, ID: append([]byte(nil), id...), Value: rec.value, Tags: rec.tags})
	}
	iter.Close()

	return &sliceCursor{records: records}, nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) readLocked(typ, id []byte) (*storedRecord, error) {
	raw, err := d.db.Get(recordKey(typ, id))
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	if raw == nil {
		return nil, storage.ErrNotFound
	}
	return decodeStoredRecord(raw)
}

func (d *DB) writeRecordLocked(typ, id []byte, rec *storedRecord, oldTags []storage.Tag) error {
	batch := d.db.NewBatch()
	defer batch.Close()

	for _, t := range oldTags {
		if err := batch.Delete(tagKey(typ, t, id)); err != nil {
			return fmt.Errorf("clear old tag index: %w", err)
		}
	}
	for _, t := range rec.tags {
		if err := batch.Set(tagKey(typ, t, id), []byte{1}); err != nil {
			return fmt.Errorf("write tag index: %w", err)
		}
	}
	if err := batch.Set(recordKey(typ, id), encodeStoredRecord(rec)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return batch.WriteSync()
}

func mergeTags(existing, added []storage.Tag) []storage.Tag {
	byName := make(map[string]storage.Tag, len(existing)+len(added))
	for _, t := range existing {
		byName[string(t.Name)] = t
	}
	for _, t := range added {
		byName[string(t.Name)] = t
	}
	out := make([]storage.Tag, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	return out
}

func removeTagNames(tags []storage.Tag, names [][]byte) []storage.Tag {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[string(n)] = true
	}
	out := make([]storage.Tag, 0, len(tags))
	for _, t := range tags {
		if !drop[string(t.Name)] {
			out = append(out, t)
		}
	}
	return out
}

type sliceCursor struct {
	records []*storage.Record
	next    int
}

func (c *sliceCursor) Next(ctx context.Context) (*storage.Record, bool, error) {
	if c.next >= len(c.records) {
		return nil, false, nil
	}
	rec := c.records[c.next]
	c.next++
	return rec, true, nil
}

func (c *sliceCursor) TotalCount() int { return len(c.records) }
func (c *sliceCursor) Close() error    { return nil }

// --- minimal length-prefixed byte codec, avoiding a dependency for a
// format this small and internal to one storage backend. ---

type bytesReader struct {
	b   []byte
	pos int
}

func (r *bytesReader) readByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("kv: unexpected end of stored record")
	}
	c := r.b[r.pos]
	r.pos++
	return c, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytesReader) (uint64, error) {
	v, n := binary.Uvarint(r.b[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("kv: invalid varint in stored record")
	}
	r.pos += n
	return v, nil
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	writeUvarint(buf, uint64(len(data)))
	buf.Write(data)
}

func readLenPrefixed(r *bytesReader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.b) {
		return nil, fmt.Errorf("kv: truncated stored record")
	}
	out := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}
