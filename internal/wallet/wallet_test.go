// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package wallet

import (
	"context"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/wallet/storage/kv"
)

func testWallet(t *testing.T) (handle.Handle, func()) {
	t.Helper()
	name := t.Name()

	store := kv.OpenWith(dbm.NewMemDB())
	key := []byte("test-master-key-material")
	k, err := deriveKey(key, name)
	if err != nil {
		t.Fatalf("derive key: %v", err)
	}

	w := &Wallet{name: name, storage: store, key: k}

	h := handle.Next()
	registryMu.Lock()
	open[h] = w
	openNames[name] = true
	registryMu.Unlock()

	return h, func() {
		registryMu.Lock()
		delete(open, h)
		delete(openNames, name)
		registryMu.Unlock()
		store.Close()
	}
}

func TestAddGetRoundTrip(t *testing.T) {
	h, cleanup := testWallet(t)
	defer cleanup()

	tags := map[string][]byte{"~age": []byte("28"), "name": []byte("Alex")}
	if err := Add(h, "Indy::Schema", "schema-1", []byte("payload"), tags); err != nil {
		t.Fatalf("add: %v", err)
	}

	rec, err := Get(h, "Indy::Schema", "schema-1", GetOptions{RetrieveValue: true, RetrieveTags: true, RetrieveType: true})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(rec.Value) != "payload" {
		t.Fatalf("expected payload, got %q", rec.Value)
	}
	if rec.Type != "Indy::Schema" {
		t.Fatalf("expected type to be retrieved, got %q", rec.Type)
	}
	if string(rec.Tags["~age"]) != "28" || string(rec.Tags["name"]) != "Alex" {
		t.Fatalf("unexpected tags: %+v", rec.Tags)
	}
}

func TestAddDuplicateFailsAlreadyExists(t *testing.T) {
	h, cleanup := testWallet(t)
	defer cleanup()

	if err := Add(h, "Indy::Schema", "dup", []byte("v1"), nil); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := Add(h, "Indy::Schema", "dup", []byte("v2"), nil)
	if ierr.CodeOf(err) != ierr.CodeAlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestGetMissingFailsNotFound(t *testing.T) {
	h, cleanup := testWallet(t)
	defer cleanup()

	_, err := Get(h, "Indy::Schema", "missing", DefaultGetOptions())
	if ierr.CodeOf(err) != ierr.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestTagsAreEncryptedAtRest(t *testing.T) {
	h, cleanup := testWallet(t)
	defer cleanup()

	if err := Add(h, "Indy::Schema", "s1", []byte("secret-value"), map[string][]byte{"name": []byte("Alex")}); err != nil {
		t.Fatalf("add: %v", err)
	}

	w, err := lookup(h)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	raw, err := w.storage.(*kv.DB).Get(context.Background(), []byte("Indy::Schema"), []byte("s1"))
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	for _, tag := range raw.Tags {
		if string(tag.Name) == "name" || string(tag.Value) == "Alex" {
			t.Fatal("expected encrypted tag name/value to not appear in plaintext in storage")
		}
	}
	if string(raw.Value) == "secret-value" {
		t.Fatal("expected record value to be encrypted at rest")
	}
}

func TestSearchFiltersByQuery(t *testing.T) {
	h, cleanup := testWallet(t)
	defer cleanup()

	records := []struct {
		id   string
		age  string
		name string
	}{
		{"c1", "28", "Alex"},
		{"c2", "10", "Sam"},
		{"c3", "40", "Jordan"},
	}
	for _, r := range records {
		tags := map[string][]byte{"~age": []byte(r.age), "name": []byte(r.name)}
		if err := Add(h, "Indy::Cred", r.id, []byte("v-"+r.id), tags); err != nil {
			t.Fatalf("add %s: %v", r.id, err)
		}
	}

	query, err := ParseQuery([]byte(`{"~age":{"$gte":"18"}}`))
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	cur, err := Search(h, "Indy::Cred", query, SearchOptions{RetrieveValue: true, RetrieveRecords: true, RetrieveTotalCount: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	defer cur.Close()

	if cur.TotalCount() != 2 {
		t.Fatalf("expected total count 2, got %d", cur.TotalCount())
	}

	seen := map[string]bool{}
	for {
		rec, ok, err := cur.FetchNext(context.Background())
		if err != nil {
			t.Fatalf("fetch next: %v", err)
		}
		if !ok {
			break
		}
		seen[rec.ID] = true
	}
	if len(seen) != 2 || !seen["c1"] || !seen["c3"] {
		t.Fatalf("expected c1 and c3 to match, got %+v", seen)
	}
}

func TestSearchAllReturnsEverything(t *testing.T) {
	h, cleanup := testWallet(t)
	defer cleanup()

	for _, id := range []string{"a", "b", "c"} {
		if err := Add(h, "Indy::Cred", id, []byte(id), nil); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	cur, err := SearchAll(h, "Indy::Cred", DefaultSearchOptions())
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	defer cur.Close()

	count := 0
	for {
		_, ok, err := cur.FetchNext(context.Background())
		if err != nil {
			t.Fatalf("fetch next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}

func TestOpenHandleExclusivity(t *testing.T) {
	name := "exclusive-wallet"
	registryMu.Lock()
	openNames[name] = true
	registryMu.Unlock()
	defer func() {
		registryMu.Lock()
		delete(openNames, name)
		registryMu.Unlock()
	}()

	_, err := Open(Config{Name: name, BaseDir: t.TempDir()})
	if ierr.CodeOf(err) != ierr.CodeAlreadyOpened {
		t.Fatalf("expected AlreadyOpened, got %v", err)
	}
}

func TestCreateOpenCloseDeleteLifecycle(t *testing.T) {
	cfg := Config{
		Name:              "lifecycle-wallet",
		StorageType:       "kv",
		StorageConnection: t.TempDir(),
		Key:               []byte("lifecycle-key"),
		BaseDir:           t.TempDir(),
	}

	if err := Create(cfg); err != nil {
		t.Fatalf("create: %v", err)
	}

	h, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := Add(h, "Indy::Schema", "s1", []byte("payload"), nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := Open(cfg); ierr.CodeOf(err) != ierr.CodeAlreadyOpened {
		t.Fatalf("expected second open to fail AlreadyOpened, got %v", err)
	}

	if err := Close(h); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := Delete(cfg); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
