// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package firestore is a third registered wallet Storage backend, for a
// managed cloud wallet store. The connection string is a Firebase/GCP
// project id; credentials come from GOOGLE_APPLICATION_CREDENTIALS or
// application-default credentials the way the rest of the corpus's
// Firestore integrations expect.
package firestore

import (
	"context"
	"fmt"
	"os"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/certen/indysdk/internal/wallet/storage"
)

func init() {
	_ = storage.Register("firestore", func(connection string) (storage.Storage, error) {
		return Open(context.Background(), connection)
	})
}

const recordsCollection = "wallet_records"

// Client wraps a Firestore client scoped to one wallet's records.
type Client struct {
	app *firebase.App
	fs  *gcpfirestore.Client
}

// Open initializes a Firebase app and Firestore client for projectID,
// using GOOGLE_APPLICATION_CREDENTIALS if set.
func Open(ctx context.Context, projectID string) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore wallet store: project id is required")
	}

	var opts []option.ClientOption
	if cred := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); cred != "" {
		opts = append(opts, option.WithCredentialsFile(cred))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Client{app: app, fs: fs}, nil
}

// walletDoc is the Firestore document shape for one wallet record. Tag
// names/values are stored as base64-free raw bytes via Firestore's
// native []byte support so the wallet layer's ciphertext passes through
// untouched.
type walletDoc struct {
	Type  []byte        `firestore:"type"`
	ID    []byte        `firestore:"id"`
	Value []byte        `firestore:"value"`
	Tags  []firestoreTag `firestore:"tags"`
}

type firestoreTag struct {
	Name      []byte `firestore:"name"`
	Value     []byte `firestore:"value"`
	Plaintext bool   `firestore:"plaintext"`
}

func docID(typ, id []byte) string {
	return fmt.Sprintf("%x_%x", typ, id)
}

func toDoc(rec *storage.Record) walletDoc {
	tags := make([]firestoreTag, len(rec.Tags))
	for i, t := range rec.Tags {
		tags[i] = firestoreTag{Name: t.Name, Value: t.Value, Plaintext: t.Plaintext}
	}
	return walletDoc{Type: rec.Type, ID: rec.ID, Value: rec.Value, Tags: tags}
}

func fromDoc(d walletDoc) *storage.Record {
	tags := make([]storage.Tag, len(d.Tags))
	for i, t := range d.Tags {
		tags[i] = storage.Tag{Name: t.Name, Value: t.Value, Plaintext: t.Plaintext}
	}
	return &storage.Record{Type: d.Type, ID: d.ID, Value: d.Value, Tags: tags}
}

// Add inserts a new record, failing with storage.ErrAlreadyExists if the
// document already exists.
func (c *Client) Add(ctx context.Context, rec *storage.Record) error {
	ref := c.fs.Collection(recordsCollection).Doc(docID(rec.Type, rec.ID))
	_, err := ref.Get(ctx)
	if err == nil {
		return storage.ErrAlreadyExists
	}
	_, err = ref.Set(ctx, toDoc(rec))
	if err != nil {
		return fmt.Errorf("firestore add: %w", err)
	}
	return nil
}

// UpdateValue replaces a record's value field.
func (c *Client) UpdateValue(ctx context.Context, typ, id, value []byte) error {
	ref := c.fs.Collection(recordsCollection).Doc(docID(typ, id))
	if _, err := ref.Get(ctx); err != nil {
		return storage.ErrNotFound
	}
	_, err := ref.Update(ctx, []gcpfirestore.Update{{Path: "value", Value: value}})
	if err != nil {
		return fmt.Errorf("firestore update value: %w", err)
	}
	return nil
}

// UpdateTags replaces a record's tag set wholesale.
func (c *Client) UpdateTags(ctx context.Context, typ, id []byte, tags []storage.Tag) error {
	ref := c.fs.Collection(recordsCollection).Doc(docID(typ, id))
	if _, err := ref.Get(ctx); err != nil {
		return storage.ErrNotFound
	}
	fsTags := make([]firestoreTag, len(tags))
	for i, t := range tags {
		fsTags[i] = firestoreTag{Name: t.Name, Value: t.Value, Plaintext: t.Plaintext}
	}
	_, err := ref.Update(ctx, []gcpfirestore.Update{{Path: "tags", Value: fsTags}})
	if err != nil {
		return fmt.Errorf("firestore update tags: %w", err)
	}
	return nil
}

// AddTags merges additional tags into a record's existing tag set.
func (c *Client) AddTags(ctx context.Context, typ, id []byte, tags []storage.Tag) error {
	existing, err := c.Get(ctx, typ, id)
	if err != nil {
		return err
	}
	return c.UpdateTags(ctx, typ, id, mergeTags(existing.Tags, tags))
}

// DeleteTags removes tags by name from a record.
func (c *Client) DeleteTags(ctx context.Context, typ, id []byte, names [][]byte) error {
	existing, err := c.Get(ctx, typ, id)
	if err != nil {
		return err
	}
	return c.UpdateTags(ctx, typ, id, removeTagNames(existing.Tags, names))
}

// Delete removes a record document.
func (c *Client) Delete(ctx context.Context, typ, id []byte) error {
	ref := c.fs.Collection(recordsCollection).Doc(docID(typ, id))
	if _, err := ref.Get(ctx); err != nil {
		return storage.ErrNotFound
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete: %w", err)
	}
	return nil
}

// Get fetches a single record.
func (c *Client) Get(ctx context.Context, typ, id []byte) (*storage.Record, error) {
	snap, err := c.fs.Collection(recordsCollection).Doc(docID(typ, id)).Get(ctx)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	var d walletDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore decode record: %w", err)
	}
	return fromDoc(d), nil
}

// Search enumerates every record of the given type.
func (c *Client) Search(ctx context.Context, typ []byte) (storage.Cursor, error) {
	it := c.fs.Collection(recordsCollection).Where("type", "==", typ).Documents(ctx)
	defer it.Stop()

	var records []*storage.Record
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore search: %w", err)
		}
		var d walletDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("firestore decode record: %w", err)
		}
		records = append(records, fromDoc(d))
	}
	return &sliceCursor{records: records}, nil
}

// Close releases the underlying Firestore client.
func (c *Client) Close() error {
	return c.fs.Close()
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
