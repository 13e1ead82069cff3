// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package ledgercache

import (
	"context"
	"fmt"
	"testing"

	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/wallet"
)

type fakeFetcher struct {
	credDefCalls int
	schemaCalls  int
	credDef      []byte
	schema       []byte
}

func (f *fakeFetcher) FetchCredDef(ctx context.Context, submitterDID, id string) ([]byte, error) {
	f.credDefCalls++
	if f.credDef == nil {
		return nil, fmt.Errorf("no cred def on ledger for %s", id)
	}
	return f.credDef, nil
}

func (f *fakeFetcher) FetchSchema(ctx context.Context, submitterDID, id string) ([]byte, error) {
	f.schemaCalls++
	if f.schema == nil {
		return nil, fmt.Errorf("no schema on ledger for %s", id)
	}
	return f.schema, nil
}

func testWalletHandle(t *testing.T) handle.Handle {
	t.Helper()
	cfg := wallet.Config{
		Name:              t.Name(),
		StorageType:       "kv",
		StorageConnection: t.TempDir(),
		Key:               []byte("ledgercache-test-key"),
		BaseDir:           t.TempDir(),
	}
	if err := wallet.Create(cfg); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	h, err := wallet.Open(cfg)
	if err != nil {
		t.Fatalf("open wallet: %v", err)
	}
	t.Cleanup(func() { wallet.Close(h) })
	return h
}

func TestGetCredDefFetchesOnMiss(t *testing.T) {
	h := testWalletHandle(t)
	fetcher := &fakeFetcher{credDef: []byte("cred-def-bytes")}
	cache := New(h, fetcher, nil)

	data, err := cache.GetCredDef(context.Background(), "did:1", "cd1", DefaultOptions())
	if err != nil {
		t.Fatalf("get cred def: %v", err)
	}
	if string(data) != "cred-def-bytes" {
		t.Fatalf("unexpected data: %q", data)
	}
	if fetcher.credDefCalls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", fetcher.credDefCalls)
	}
}

func TestGetCredDefReturnsCachedOnSecondCall(t *testing.T) {
	h := testWalletHandle(t)
	fetcher := &fakeFetcher{credDef: []byte("v1")}
	cache := New(h, fetcher, nil)

	if _, err := cache.GetCredDef(context.Background(), "did:1", "cd1", DefaultOptions()); err != nil {
		t.Fatalf("first get: %v", err)
	}

	fetcher.credDef = []byte("v2")
	data, err := cache.GetCredDef(context.Background(), "did:1", "cd1", DefaultOptions())
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("expected cached v1 (MinFresh=-1 never expires), got %q", data)
	}
	if fetcher.credDefCalls != 1 {
		t.Fatalf("expected exactly one fetch across both calls, got %d", fetcher.credDefCalls)
	}
}

func TestGetCredDefNoUpdateFailsNotFoundOnMiss(t *testing.T) {
	h := testWalletHandle(t)
	fetcher := &fakeFetcher{}
	cache := New(h, fetcher, nil)

	_, err := cache.GetCredDef(context.Background(), "did:1", "cd-missing", Options{MinFresh: -1, NoUpdate: true})
	if ierr.CodeOf(err) != ierr.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if fetcher.credDefCalls != 0 {
		t.Fatalf("expected no network fetch with NoUpdate set, got %d calls", fetcher.credDefCalls)
	}
}

func TestGetCredDefNoCacheBypassesStore(t *testing.T) {
	h := testWalletHandle(t)
	fetcher := &fakeFetcher{credDef: []byte("fresh")}
	cache := New(h, fetcher, nil)

	if _, err := cache.GetCredDef(context.Background(), "did:1", "cd1", Options{NoCache: true, MinFresh: -1}); err != nil {
		t.Fatalf("get with NoCache: %v", err)
	}
	if fetcher.credDefCalls != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.credDefCalls)
	}

	// A later non-bypassing call must still miss, proving nothing was stored.
	_, err := cache.GetCredDef(context.Background(), "did:1", "cd1", Options{MinFresh: -1, NoUpdate: true})
	if ierr.CodeOf(err) != ierr.CodeNotFound {
		t.Fatalf("expected NoCache call to have stored nothing, got %v", err)
	}
}

func TestGetCredDefMinFreshForcesRefetch(t *testing.T) {
	h := testWalletHandle(t)
	fetcher := &fakeFetcher{credDef: []byte("v1")}
	cache := New(h, fetcher, nil)

	if _, err := cache.GetCredDef(context.Background(), "did:1", "cd1", DefaultOptions()); err != nil {
		t.Fatalf("first get: %v", err)
	}

	fetcher.credDef = []byte("v2")
	data, err := cache.GetCredDef(context.Background(), "did:1", "cd1", Options{MinFresh: 0})
	if err != nil {
		t.Fatalf("second get with MinFresh=0: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("expected refetched v2 with MinFresh=0, got %q", data)
	}
	if fetcher.credDefCalls != 2 {
		t.Fatalf("expected two fetches, got %d", fetcher.credDefCalls)
	}
}

func TestPurgeAllRemovesEntries(t *testing.T) {
	h := testWalletHandle(t)
	fetcher := &fakeFetcher{credDef: []byte("cd"), schema: []byte("sc")}
	cache := New(h, fetcher, nil)

	if _, err := cache.GetCredDef(context.Background(), "did:1", "cd1", DefaultOptions()); err != nil {
		t.Fatalf("get cred def: %v", err)
	}
	if _, err := cache.GetSchema(context.Background(), "did:1", "sc1", DefaultOptions()); err != nil {
		t.Fatalf("get schema: %v", err)
	}

	if err := cache.Purge(context.Background(), PurgeOptions{MinFresh: -1}); err != nil {
		t.Fatalf("purge: %v", err)
	}

	_, err := cache.GetCredDef(context.Background(), "did:1", "cd1", Options{MinFresh: -1, NoUpdate: true})
	if ierr.CodeOf(err) != ierr.CodeNotFound {
		t.Fatalf("expected cred def purged, got %v", err)
	}
	_, err = cache.GetSchema(context.Background(), "did:1", "sc1", Options{MinFresh: -1, NoUpdate: true})
	if ierr.CodeOf(err) != ierr.CodeNotFound {
		t.Fatalf("expected schema purged, got %v", err)
	}
}
