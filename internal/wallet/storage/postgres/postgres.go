// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package postgres is a registered alternative wallet Storage backend
// over a Postgres database, demonstrating that the wallet's storage
// contract is truly pluggable (spec §4.1) beyond the embedded default.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/certen/indysdk/internal/wallet/storage"
)

func init() {
	_ = storage.Register("postgres", func(connection string) (storage.Storage, error) {
		return Open(connection)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS wallet_records (
	rec_type BYTEA NOT NULL,
	rec_id   BYTEA NOT NULL,
	value    BYTEA NOT NULL,
	tags     JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (rec_type, rec_id)
);
CREATE INDEX IF NOT EXISTS wallet_records_tags_gin ON wallet_records USING gin (tags);
`

// DB is a Postgres-backed Storage implementation.
type DB struct {
	sql *sql.DB
}

// Open connects to dsn and ensures the wallet schema exists.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres wallet store: %w", err)
	}
	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres wallet store: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create wallet schema: %w", err)
	}
	return &DB{sql: conn}, nil
}

func encodeTags(tags []storage.Tag) ([]byte, error) {
	return json.Marshal(tags)
}

func decodeTags(data []byte) ([]storage.Tag, error) {
	var tags []storage.Tag
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// Add inserts a new record, failing with storage.ErrAlreadyExists on a
// primary-key collision.
func (d *DB) Add(ctx context.Context, rec *storage.Record) error {
	tagsJSON, err := encodeTags(rec.Tags)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO wallet_records (rec_type, rec_id, value, tags) VALUES ($1, $2, $3, $4)`,
		rec.Type, rec.ID, rec.Value, tagsJSON,
	)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert wallet record: %w", err)
	}
	return nil
}

// UpdateValue replaces a record's value column.
func (d *DB) UpdateValue(ctx context.Context, typ, id, value []byte) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE wallet_records SET value = $3 WHERE rec_type = $1 AND rec_id = $2`,
		typ, id, value,
	)
	if err != nil {
		return fmt.Errorf("update value: %w", err)
	}
	return requireOneRow(res)
}

// UpdateTags replaces a record's tag set.
func (d *DB) UpdateTags(ctx context.Context, typ, id []byte, tags []storage.Tag) error {
	tagsJSON, err := encodeTags(tags)
	if err != nil {
		return err
	}
	res, err := d.sql.ExecContext(ctx,
		`UPDATE wallet_records SET tags = $3 WHERE rec_type = $1 AND rec_id = $2`,
		typ, id, tagsJSON,
	)
	if err != nil {
		return fmt.Errorf("update tags: %w", err)
	}
	return requireOneRow(res)
}

// AddTags merges additional tags into the existing set.
func (d *DB) AddTags(ctx context.Context, typ, id []byte, tags []storage.Tag) error {
	existing, err := d.Get(ctx, typ, id)
	if err != nil {
		return err
	}
	return d.UpdateTags(ctx, typ, id, mergeTags(existing.Tags, tags))
}

// DeleteTags removes tags by name.
func (d *DB) DeleteTags(ctx context.Context, typ, id []byte, names [][]byte) error {
	existing, err := d.Get(ctx, typ, id)
	if err != nil {
		return err
	}
	return d.UpdateTags(ctx, typ, id, removeTagNames(existing.Tags, names))
}

// Delete removes a record.
func (d *DB) Delete(ctx context.Context, typ, id []byte) error {
	res, err := d.sql.ExecContext(ctx,
		`DELETE FROM wallet_records WHERE rec_type = $1 AND rec_id = $2`, typ, id,
	)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireOneRow(res)
}

// Get fetches a single record.
func (d *DB) Get(ctx context.Context, typ, id []byte) (*storage.Record, error) {
	var value []byte
	var tagsJSON []byte
	err := d.sql.QueryRowContext(ctx,
		`SELECT value, tags FROM wallet_records WHERE rec_type = $1 AND rec_id = $2`, typ, id,
	).Scan(&value, &tagsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	tags, err := decodeTags(tagsJSON)
	if err != nil {
		return nil, err
	}
	return &storage.Record{Type: typ, ID: id, Value: value, Tags: tags}, nil
}

// Search enumerates every record of the given type.
func (d *DB) Search(ctx context.Context, typ []byte) (storage.Cursor, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT rec_id, value, tags FROM wallet_records WHERE rec_type = $1`, typ,
	)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		var id, value, tagsJSON []byte
		if err := rows.Scan(&id, &value, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		tags, err := decodeTags(tagsJSON)
		if err != nil {
			return nil, err
		}
		records = append(records, &storage.Record{Type: typ, ID: id, Value: value, Tags: tags})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return &sliceCursor{records: records}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.sql.Close()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && errorContains(err.Error(), "duplicate key value violates unique constraint")
}

func errorContains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
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
